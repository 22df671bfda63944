package encoder

import (
	"fmt"
	"sort"

	"github.com/jmylchreest/hwenc/internal/device"
)

// Profile is a canonical bitstream profile name.
type Profile string

// Canonical profiles.
const (
	ProfileBaseline            Profile = "baseline"
	ProfileConstrainedBaseline Profile = "constrained-baseline"
	ProfileMain                Profile = "main"
	ProfileHigh                Profile = "high"
	ProfileProgressiveHigh     Profile = "progressive-high"
	ProfileConstrainedHigh     Profile = "constrained-high"
	ProfileHigh444             Profile = "high-4:4:4"
)

// profilePriority is the fixed tie-break order used when no other rule
// selects a profile. The order is part of the output contract: changing it
// changes which profile a given downstream offer resolves to.
var profilePriority = []Profile{
	ProfileMain,
	ProfileHigh,
	ProfileProgressiveHigh,
	ProfileConstrainedHigh,
	ProfileConstrainedBaseline,
	ProfileBaseline,
	ProfileHigh444,
}

// highEfficiencyPreference is consulted first when a multi-frame GOP
// structure is requested.
var highEfficiencyPreference = []Profile{
	ProfileMain,
	ProfileHigh,
	ProfileProgressiveHigh,
}

// SupportsInterlaced reports whether the profile permits field encoding.
func (p Profile) SupportsInterlaced() bool {
	switch p {
	case ProfileMain, ProfileHigh, ProfileHigh444:
		return true
	}
	return false
}

// SupportsBFrames reports whether the profile permits B-frames. The
// baseline class does not.
func (p Profile) SupportsBFrames() bool {
	switch p {
	case ProfileMain, ProfileHigh, ProfileProgressiveHigh, ProfileHigh444:
		return true
	}
	return false
}

// BaselineClass reports whether the profile belongs to the baseline class,
// which also excludes CABAC entropy coding.
func (p Profile) BaselineClass() bool {
	return p == ProfileBaseline || p == ProfileConstrainedBaseline
}

// profilesForID expands a device-reported profile ID into canonical names.
// The baseline profile satisfies both baseline and constrained-baseline
// offers.
func profilesForID(id device.ProfileID) []Profile {
	switch id {
	case device.ProfileIDBaseline:
		return []Profile{ProfileBaseline, ProfileConstrainedBaseline}
	case device.ProfileIDMain:
		return []Profile{ProfileMain}
	case device.ProfileIDHigh:
		return []Profile{ProfileHigh}
	case device.ProfileIDHigh444:
		return []Profile{ProfileHigh444}
	case device.ProfileIDProgressiveHigh:
		return []Profile{ProfileProgressiveHigh}
	case device.ProfileIDConstrainedHigh:
		return []Profile{ProfileConstrainedHigh}
	}
	return nil
}

// ProfileSet is an unordered set of profiles.
type ProfileSet map[Profile]struct{}

// NewProfileSet builds a set from the given profiles.
func NewProfileSet(profiles ...Profile) ProfileSet {
	s := make(ProfileSet, len(profiles))
	for _, p := range profiles {
		s[p] = struct{}{}
	}
	return s
}

// Has reports set membership.
func (s ProfileSet) Has(p Profile) bool {
	_, ok := s[p]
	return ok
}

// Add inserts a profile.
func (s ProfileSet) Add(p Profile) { s[p] = struct{}{} }

// Clone returns an independent copy.
func (s ProfileSet) Clone() ProfileSet {
	out := make(ProfileSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Sorted returns the profiles in lexical order, for stable logging.
func (s ProfileSet) Sorted() []Profile {
	out := make([]Profile, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// deviceProfiles expands the device capability snapshot into the canonical
// profile set.
func deviceProfiles(caps device.Capabilities) ProfileSet {
	s := make(ProfileSet)
	for _, id := range caps.Profiles {
		for _, p := range profilesForID(id) {
			s.Add(p)
		}
	}
	return s
}

// SPS constraint flag bits in the byte following profile_idc.
const (
	constraintSet1 = 0x40
	constraintSet4 = 0x08
	constraintSet5 = 0x04
)

// ProfileFromSPS parses the achieved profile from a sequence parameter set
// unit (NAL header byte included). This is ground truth: the device may
// auto-select a different profile than the one requested.
func ProfileFromSPS(sps []byte) (Profile, error) {
	if len(sps) < 4 {
		return "", fmt.Errorf("sps too short (%d bytes)", len(sps))
	}
	idc := sps[1]
	flags := sps[2]

	switch idc {
	case 66:
		if flags&constraintSet1 != 0 {
			return ProfileConstrainedBaseline, nil
		}
		return ProfileBaseline, nil
	case 77:
		return ProfileMain, nil
	case 100:
		if flags&constraintSet4 != 0 && flags&constraintSet5 != 0 {
			return ProfileConstrainedHigh, nil
		}
		if flags&constraintSet4 != 0 {
			return ProfileProgressiveHigh, nil
		}
		return ProfileHigh, nil
	case 244:
		return ProfileHigh444, nil
	}
	return "", fmt.Errorf("unrecognized profile_idc %d", idc)
}

// resolveProfileName picks the profile string advertised downstream. When
// the parsed canonical name differs textually from what downstream offered
// only through known aliasing, the downstream-offered name wins.
func resolveProfileName(parsed Profile, downstream ProfileSet) Profile {
	if len(downstream) == 0 || downstream.Has(parsed) {
		return parsed
	}
	if parsed == ProfileConstrainedBaseline && downstream.Has(ProfileBaseline) {
		return ProfileBaseline
	}
	return parsed
}
