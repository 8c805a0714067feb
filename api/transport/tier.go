// Copyright (c) 2026 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package transport

import "fmt"

// Tier is a caller priority tier. Higher tiers survive load shedding longer.
type Tier int

const (
	// TierFree is the lowest priority tier, shed first under load.
	TierFree Tier = iota

	// TierStandard is the default tier.
	TierStandard

	// TierPremium is the highest tier, shed only when the pod is saturated.
	TierPremium
)

// String returns the lowercase tier name.
func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierStandard:
		return "standard"
	case TierPremium:
		return "premium"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier converts a tier name into a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "free":
		return TierFree, nil
	case "standard", "":
		return TierStandard, nil
	case "premium":
		return TierPremium, nil
	default:
		return TierStandard, fmt.Errorf("unknown tier %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so tiers can appear in
// YAML and attribute-map configuration.
func (t *Tier) UnmarshalText(text []byte) error {
	tier, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = tier
	return nil
}
