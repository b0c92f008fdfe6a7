package gateway

import (
	"net/http"
	"time"

	"github.com/unkn0wn-root/dealscache"
)

// Envelope is the JSON body of every data route.
type Envelope struct {
	Status string `json:"status"` // "success" | "failure"
	Data   any    `json:"data"`
	Stale  bool   `json:"stale"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// StatsView is Statistics with derived rates, durations in milliseconds.
type StatsView struct {
	TotalEntries    int     `json:"total_entries"`
	HitCount        uint64  `json:"hit_count"`
	MissCount       uint64  `json:"miss_count"`
	HitRate         float64 `json:"hit_rate"`
	AvgResponseMS   float64 `json:"avg_response_ms"`
	OldestEntryAgeS float64 `json:"oldest_entry_age_s"`
	NewestEntryAgeS float64 `json:"newest_entry_age_s"`
}

func viewStats(st dealscache.Statistics) StatsView {
	return StatsView{
		TotalEntries:    st.TotalEntries,
		HitCount:        st.HitCount,
		MissCount:       st.MissCount,
		HitRate:         st.HitRate(),
		AvgResponseMS:   float64(st.AvgResponseTime()) / float64(time.Millisecond),
		OldestEntryAgeS: st.OldestEntryAge.Seconds(),
		NewestEntryAgeS: st.NewestEntryAge.Seconds(),
	}
}

type reply struct {
	code int
	env  Envelope
}

func writeResult[V any](w http.ResponseWriter, res dealscache.Result[V]) {
	rep := dealscache.Match(res, dealscache.Cases[V, reply]{
		Pending: func() reply {
			return reply{http.StatusAccepted, Envelope{Status: "pending"}}
		},
		Success: func(v V) reply {
			return reply{http.StatusOK, Envelope{Status: "success", Data: v}}
		},
		Failure: func(msg string, stale *V, cause error) reply {
			kind := dealscache.KindOf(cause)
			env := Envelope{Status: "failure", Error: msg, Kind: kind.String()}
			if stale != nil {
				env.Data, env.Stale = *stale, true
				return reply{http.StatusOK, env}
			}
			return reply{failureStatus(kind), env}
		},
	})
	writeJSON(w, rep.code, rep.env)
}

func failureStatus(kind dealscache.ErrorKind) int {
	switch kind {
	case dealscache.KindInvalid:
		return http.StatusBadRequest
	case dealscache.KindEmpty:
		return http.StatusNotFound
	case dealscache.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, Envelope{
		Status: "failure",
		Error:  msg,
		Kind:   dealscache.KindInvalid.String(),
	})
}
