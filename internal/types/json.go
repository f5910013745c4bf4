package types

import (
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// jsonb helpers for the string-set and id-list columns.

func StringsToJSON(vals []string) datatypes.JSON {
	if vals == nil {
		vals = []string{}
	}
	raw, _ := json.Marshal(vals)
	return datatypes.JSON(raw)
}

func StringsFromJSON(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func UUIDsToJSON(ids []uuid.UUID) datatypes.JSON {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	raw, _ := json.Marshal(ids)
	return datatypes.JSON(raw)
}

func UUIDsFromJSON(raw datatypes.JSON) []uuid.UUID {
	if len(raw) == 0 {
		return nil
	}
	var out []uuid.UUID
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
