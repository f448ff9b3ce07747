package geo

import "github.com/paulmach/orb"

// IsWithinRadius reports whether a is within radius meters of b (inclusive).
func IsWithinRadius(a, b orb.Point, radius float64) (bool, error) {
	d, err := Distance(a, b)
	if err != nil {
		return false, err
	}
	return d <= radius, nil
}

// Policy is a named radius threshold. Distinct operations use distinct policies.
type Policy struct {
	Name   string
	Radius float64 // meters
}

func NewPolicy(name string, radius float64) Policy {
	return Policy{Name: name, Radius: radius}
}

// Evaluation is the outcome of checking one point against a policy.
type Evaluation struct {
	Within   bool
	Distance float64
	Radius   float64
}

func (p Policy) Evaluate(observed, center orb.Point) (Evaluation, error) {
	d, err := Distance(observed, center)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Within: d <= p.Radius, Distance: d, Radius: p.Radius}, nil
}
