package service

import (
	"encoding/json"
	"time"
)

// The Opt types distinguish a patch field that is absent from one that is
// present with an explicit null. Set is true whenever the key appeared in
// the request body; Value stays nil for a JSON null.

type OptString struct {
	Set   bool
	Value *string
}

func (o *OptString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

type OptUint struct {
	Set   bool
	Value *uint
}

func (o *OptUint) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

type OptTime struct {
	Set   bool
	Value *time.Time
}

func (o *OptTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}
