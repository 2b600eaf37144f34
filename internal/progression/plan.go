package progression

// WritePlan is the store-level shape of one bounded update. Fields whose
// result stays in range are written as native increments of the original
// delta. Fields that clamp are written as absolute values and never also
// incremented, otherwise the delta would be applied twice.
type WritePlan struct {
	Inc     map[Field]int64
	Set     map[Field]int64
	Clamped []Field
}

// Empty reports whether the plan writes nothing.
func (p WritePlan) Empty() bool {
	return len(p.Inc) == 0 && len(p.Set) == 0
}

// Plan computes the write for applying d to current. Missing current values
// read as zero. Zero deltas are dropped.
func (s Schema) Plan(current map[Field]int64, d Deltas) (WritePlan, error) {
	if err := s.Validate(d); err != nil {
		return WritePlan{}, err
	}

	plan := WritePlan{
		Inc: make(map[Field]int64),
		Set: make(map[Field]int64),
	}
	for _, f := range d.Fields() {
		delta := d[f]
		if delta == 0 {
			continue
		}
		next, clamped := Apply(current[f], delta, s.bounds[f])
		if !clamped {
			plan.Inc[f] = delta
			continue
		}
		plan.Clamped = append(plan.Clamped, f)
		plan.Set[f] = next
	}
	return plan, nil
}
