package atomic

import (
	"github.com/openarc/strata/internal/jsonapi"
)

// BuildResponse aggregates per-operation results into a response
// document. When every result carries null data the batch had no
// observable output and the caller should answer 204 with no body;
// otherwise the document lists one entry per operation, null data
// included, so positions line up with the request.
func BuildResponse(results []jsonapi.Result) (int, *jsonapi.ResultsDocument) {
	observable := false
	for i := range results {
		if results[i].Data != nil {
			observable = true
			break
		}
	}
	if !observable {
		return 204, nil
	}
	return 200, &jsonapi.ResultsDocument{Results: results}
}
