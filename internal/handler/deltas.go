package handler

import (
	"sort"

	"github.com/forgo/questline/api/internal/model"
	"github.com/forgo/questline/api/internal/progression"
)

// CharacterDeltaRequest is the body of PATCH /v1/users/me/character. Every
// member is an optional signed amount; numbers must be whole.
type CharacterDeltaRequest struct {
	Money      *float64           `json:"money,omitempty"`
	Experience *float64           `json:"experience,omitempty"`
	Level      *float64           `json:"level,omitempty"`
	Attributes map[string]float64 `json:"attributes,omitempty"`
}

// ExperienceRequest is the body of guild progress updates and distributions.
type ExperienceRequest struct {
	Experience *float64 `json:"experience"`
}

// Deltas converts the request, reporting every bad member at once.
func (r CharacterDeltaRequest) Deltas() (progression.Deltas, []model.FieldError) {
	d := make(progression.Deltas)
	var errs []model.FieldError

	add := func(name string, f progression.Field, v *float64) {
		if v == nil {
			return
		}
		n, err := progression.DeltaFromFloat(*v)
		if err != nil {
			errs = append(errs, model.FieldError{Field: name, Message: err.Error()})
			return
		}
		d[f] = n
	}
	add("money", progression.FieldMoney, r.Money)
	add("experience", progression.FieldExperience, r.Experience)
	add("level", progression.FieldLevel, r.Level)

	names := make([]string, 0, len(r.Attributes))
	for name := range r.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f, err := progression.ParseAttribute(name)
		if err != nil {
			errs = append(errs, model.FieldError{Field: "attributes." + name, Message: err.Error()})
			continue
		}
		v := r.Attributes[name]
		add("attributes."+name, f, &v)
	}
	return d, errs
}

// Deltas converts the request. A missing experience is a field error.
func (r ExperienceRequest) Deltas() (progression.Deltas, []model.FieldError) {
	if r.Experience == nil {
		return nil, []model.FieldError{{Field: "experience", Message: "required"}}
	}
	n, err := progression.DeltaFromFloat(*r.Experience)
	if err != nil {
		return nil, []model.FieldError{{Field: "experience", Message: err.Error()}}
	}
	return progression.Deltas{progression.FieldExperience: n}, nil
}
