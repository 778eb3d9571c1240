package server

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/docdeps/pkg/resolver"
)

// ResolveRequest asks for the dependency closure of one document.
// Empty Category and OnMissing and a nil MaxDepth fall back to the
// server defaults. A MaxDepth pointing at 0 means unlimited.
type ResolveRequest struct {
	DocID     string
	Category  string
	OnMissing string
	MaxDepth  *int
}

// Depth returns a MaxDepth value for ResolveRequest
func Depth(n int) *int {
	return &n
}

// ResolveResponse carries the sorted listing
type ResolveResponse struct {
	Seed     string
	Category string
	Entries  []resolver.Entry
	Missing  []string
}

func (r ResolveRequest) toStruct() (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"doc_id":     r.DocID,
		"category":   r.Category,
		"on_missing": r.OnMissing,
	}
	if r.MaxDepth != nil {
		fields["max_depth"] = *r.MaxDepth
	}
	return structpb.NewStruct(fields)
}

func requestFromStruct(s *structpb.Struct) (ResolveRequest, error) {
	fields := s.GetFields()
	req := ResolveRequest{
		DocID:     fields["doc_id"].GetStringValue(),
		Category:  fields["category"].GetStringValue(),
		OnMissing: fields["on_missing"].GetStringValue(),
	}

	if v, ok := fields["max_depth"]; ok {
		depth := v.GetNumberValue()
		if depth < 0 || depth != math.Trunc(depth) || depth > math.MaxInt32 {
			return req, fmt.Errorf("max_depth must be a non-negative integer, got %v", depth)
		}
		req.MaxDepth = Depth(int(depth))
	}
	return req, nil
}

func (r *ResolveResponse) toStruct() (*structpb.Struct, error) {
	deps := make([]interface{}, 0, len(r.Entries))
	for _, e := range r.Entries {
		deps = append(deps, map[string]interface{}{
			"doc_id":    e.DocID,
			"label":     e.Label,
			"title":     e.Title,
			"qualifier": e.Qualifier,
		})
	}
	missing := make([]interface{}, 0, len(r.Missing))
	for _, id := range r.Missing {
		missing = append(missing, id)
	}

	return structpb.NewStruct(map[string]interface{}{
		"seed":         r.Seed,
		"category":     r.Category,
		"dependencies": deps,
		"missing":      missing,
	})
}

func responseFromStruct(s *structpb.Struct) *ResolveResponse {
	fields := s.GetFields()
	resp := &ResolveResponse{
		Seed:     fields["seed"].GetStringValue(),
		Category: fields["category"].GetStringValue(),
	}

	for _, v := range fields["dependencies"].GetListValue().GetValues() {
		dep := v.GetStructValue().GetFields()
		resp.Entries = append(resp.Entries, resolver.Entry{
			DocID:     dep["doc_id"].GetStringValue(),
			Label:     dep["label"].GetStringValue(),
			Title:     dep["title"].GetStringValue(),
			Qualifier: dep["qualifier"].GetStringValue(),
		})
	}
	for _, v := range fields["missing"].GetListValue().GetValues() {
		resp.Missing = append(resp.Missing, v.GetStringValue())
	}
	return resp
}
