package http

import (
	"net/http"
	"strconv"

	"github.com/mind-engage/reshuffle/internal/taskbank"
)

// GET /validation/part?id_sbj=&id_prt=&task_count=
func PartValidationHandler(bank taskbank.Reader, scale taskbank.Scale) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		subjectID := parseID(q.Get("id_sbj"))
		partID := parseID(q.Get("id_prt"))
		taskCount := int(parseID(q.Get("task_count")))
		out, err := taskbank.DescribePart(r.Context(), bank, subjectID, partID, taskCount, scale)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, out)
	}
}

// GET /validation/task?id_prt=
func TaskValidationHandler(bank taskbank.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := taskbank.DescribeTask(r.Context(), bank, parseID(r.URL.Query().Get("id_prt")))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, out)
	}
}

// parseID treats anything but a positive integer as absent.
func parseID(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
