package mapping

import "assetid-workers/internal/models"

// Aliases are the header spellings recognized for each logical field, compared after
// normalizeHeader. Order matters: a header is claimed by the first field listing it.
var Aliases = map[models.Field][]string{
	models.FieldBuilding:        {"building", "facility", "site", "property", "building name"},
	models.FieldFloor:           {"floor", "level", "storey", "floor name"},
	models.FieldSublocation:     {"sublocation", "sub location", "location", "area", "zone"},
	models.FieldRoom:            {"subspace", "sub space", "room", "space"},
	models.FieldEquipmentName:   {"asset / equipment", "asset/equipment", "equipment", "asset", "equipment name", "asset name"},
	models.FieldEquipmentSystem: {"asset system", "system", "equipment system"},
}

// Infer proposes a mapping from header aliases. Fields without a matching header are absent.
func Infer(headers []string) models.FieldMapping {
	byKey := make(map[string]int, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if _, dup := byKey[key]; !dup {
			byKey[key] = i
		}
	}

	out := make(models.FieldMapping)
	claimed := make(map[int]bool)
	for _, field := range models.Fields {
		for _, alias := range Aliases[field] {
			idx, ok := byKey[normalizeHeader(alias)]
			if !ok || claimed[idx] {
				continue
			}
			out[field] = headers[idx]
			claimed[idx] = true
			break
		}
	}
	return out
}
