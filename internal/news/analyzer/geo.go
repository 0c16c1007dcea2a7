package analyzer

import (
	"strings"

	"github.com/RobinCoderZhao/hopeshot/pkg/i18n"
)

// Geographic impact levels, narrowest first.
const (
	ImpactLocal    = "Local"
	ImpactNational = "National"
	ImpactRegional = "Regional"
	ImpactGlobal   = "Global"
)

// ImpactLevels lists the closed vocabulary in order.
var ImpactLevels = []string{ImpactLocal, ImpactNational, ImpactRegional, ImpactGlobal}

// MaxLocationCodes bounds the location codes kept per article.
const MaxLocationCodes = 3

var impactAliases = map[string]string{
	"local":         ImpactLocal,
	"city":          ImpactLocal,
	"community":     ImpactLocal,
	"municipal":     ImpactLocal,
	"national":      ImpactNational,
	"country":       ImpactNational,
	"domestic":      ImpactNational,
	"regional":      ImpactRegional,
	"continental":   ImpactRegional,
	"region":        ImpactRegional,
	"global":        ImpactGlobal,
	"international": ImpactGlobal,
	"world":         ImpactGlobal,
	"worldwide":     ImpactGlobal,
}

// NormalizeImpactLevel maps free-form model output onto the closed set.
func NormalizeImpactLevel(s string) (string, bool) {
	level, ok := impactAliases[strings.ToLower(strings.TrimSpace(s))]
	return level, ok
}

// ResolveLocations turns place names into at most MaxLocationCodes distinct
// M49 codes. When nothing resolves it returns the World code and
// defaulted=true.
func ResolveLocations(places []string) (codes []int, defaulted bool) {
	seen := make(map[int]bool)
	for _, place := range places {
		for _, part := range strings.Split(place, ",") {
			code, ok := i18n.LookupM49(part)
			if !ok || seen[code] {
				continue
			}
			seen[code] = true
			codes = append(codes, code)
			if len(codes) == MaxLocationCodes {
				return codes, false
			}
		}
	}
	if len(codes) == 0 {
		return []int{i18n.M49World}, true
	}
	return codes, false
}

func isNone(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "n/a", "null", "unknown":
		return true
	}
	return false
}

// applyGeo fills the impact level and location fields of r. It reports
// whether the locations fell back to World.
func applyGeo(r *Result) bool {
	places := r.ImpactPlaces
	if len(places) == 0 {
		places = append(places, r.GeographicScope...)
		for _, extra := range []string{r.CountryFocus, r.LocalFocus} {
			if !isNone(extra) {
				places = append(places, extra)
			}
		}
	}

	codes, defaulted := ResolveLocations(places)
	r.LocationCodes = codes
	r.LocationNames = make([]string, len(codes))
	for i, c := range codes {
		r.LocationNames[i] = i18n.M49Name(c)
	}

	if level, ok := NormalizeImpactLevel(r.ImpactLevel); ok {
		r.ImpactLevel = level
	} else {
		r.ImpactLevel = impactFromCodes(codes)
	}
	return defaulted
}

func impactFromCodes(codes []int) string {
	for _, c := range codes {
		if c == i18n.M49World {
			return ImpactGlobal
		}
	}
	if len(codes) == 1 && i18n.M49IsCountry(codes[0]) {
		return ImpactNational
	}
	return ImpactRegional
}
