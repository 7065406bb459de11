package qdrant

import (
	"fmt"
	"strings"

	qdrant "github.com/qdrant/go-client/qdrant"

	"github.com/Aleph-Alpha/screensim/pkg/dedup"
)

// ── Distance ────────────────────────────────────────────────────────────────

var distanceAliases = map[string]qdrant.Distance{
	"euclidean": qdrant.Distance_Euclid,
	"l2":        qdrant.Distance_Euclid,
	"l1":        qdrant.Distance_Manhattan,
}

// parseDistance resolves a case-insensitive metric name.
func parseDistance(name string) (qdrant.Distance, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return qdrant.Distance_Cosine, nil
	}
	for label, value := range qdrant.Distance_value {
		if value != int32(qdrant.Distance_UnknownDistance) && strings.EqualFold(label, trimmed) {
			return qdrant.Distance(value), nil
		}
	}
	if d, ok := distanceAliases[strings.ToLower(trimmed)]; ok {
		return d, nil
	}
	return qdrant.Distance_UnknownDistance, fmt.Errorf("unknown distance %q", name)
}

// extractVectorDetails returns the size and distance of a collection with a
// single unnamed vector. Named-vector collections report (0, UnknownDistance).
func extractVectorDetails(info *qdrant.CollectionInfo) (uint64, qdrant.Distance) {
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return 0, qdrant.Distance_UnknownDistance
	}
	return params.GetSize(), params.GetDistance()
}

// ── Result Conversion ───────────────────────────────────────────────────────

// parseScoredPoints converts a Qdrant response into dedup candidates,
// preserving order.
func parseScoredPoints(resp []*qdrant.ScoredPoint) ([]dedup.Candidate, error) {
	candidates := make([]dedup.Candidate, 0, len(resp))
	for _, r := range resp {
		id, err := extractPointID(r.GetId())
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, dedup.Candidate{
			ID:      id,
			Score:   r.GetScore(),
			Vector:  convertVectors(r.GetVectors()),
			Payload: convertPayload(r.GetPayload()),
		})
	}
	return candidates, nil
}

// extractPointID extracts a string ID from Qdrant's PointId type.
func extractPointID(id *qdrant.PointId) (string, error) {
	if id == nil {
		return "", fmt.Errorf("nil point ID")
	}
	switch v := id.PointIdOptions.(type) {
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", v.Num), nil
	case *qdrant.PointId_Uuid:
		return v.Uuid, nil
	default:
		return "", fmt.Errorf("unexpected PointId type: %T", v)
	}
}

// convertVectors maps the returned vectors onto the flat/named variant.
// Missing vectors yield nil.
func convertVectors(out *qdrant.VectorsOutput) dedup.CandidateVector {
	if out == nil {
		return nil
	}
	if v := out.GetVector(); v != nil {
		return dedup.FlatVector(denseValues(v))
	}
	if named := out.GetVectors(); named != nil {
		result := make(dedup.NamedVectors, len(named.GetVectors()))
		for name, v := range named.GetVectors() {
			result[name] = denseValues(v)
		}
		return result
	}
	return nil
}

func denseValues(v *qdrant.VectorOutput) []float32 {
	if dense := v.GetDense(); dense != nil {
		return dense.GetData()
	}
	//nolint:staticcheck // older servers only fill the deprecated field
	return v.GetData()
}

// convertPayload converts Qdrant's protobuf payload to a generic map.
func convertPayload(payload map[string]*qdrant.Value) map[string]any {
	if payload == nil {
		return nil
	}
	result := make(map[string]any, len(payload))
	for k, v := range payload {
		result[k] = extractValue(v)
	}
	return result
}

// extractValue recursively converts a Qdrant Value to a Go native type.
func extractValue(v *qdrant.Value) any {
	if v == nil {
		return nil
	}
	switch val := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	case *qdrant.Value_NullValue:
		return nil
	case *qdrant.Value_StructValue:
		if val.StructValue == nil {
			return nil
		}
		return convertPayload(val.StructValue.Fields)
	case *qdrant.Value_ListValue:
		if val.ListValue == nil {
			return nil
		}
		items := make([]any, len(val.ListValue.Values))
		for i, item := range val.ListValue.Values {
			items[i] = extractValue(item)
		}
		return items
	default:
		return nil
	}
}
