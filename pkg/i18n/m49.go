package i18n

import "strings"

// M49World is the UN M49 code for the whole world.
const M49World = 1

type m49Area struct {
	code    int
	name    string
	alpha2  string
	aliases []string
}

// m49Areas covers the world, continents, UN sub-regions and the countries
// the providers report on most often.
var m49Areas = []m49Area{
	{1, "World", "", []string{"global", "worldwide", "international", "earth", "planet"}},
	{2, "Africa", "", []string{"african"}},
	{19, "Americas", "", []string{"the americas"}},
	{142, "Asia", "", []string{"asian"}},
	{150, "Europe", "", []string{"european", "european union", "eu"}},
	{9, "Oceania", "", []string{"pacific"}},
	{21, "Northern America", "", []string{"north america"}},
	{419, "Latin America and the Caribbean", "", []string{"latin america"}},
	{5, "South America", "", nil},
	{13, "Central America", "", nil},
	{29, "Caribbean", "", nil},
	{15, "Northern Africa", "", []string{"north africa"}},
	{202, "Sub-Saharan Africa", "", []string{"sub saharan africa"}},
	{14, "Eastern Africa", "", []string{"east africa"}},
	{11, "Western Africa", "", []string{"west africa"}},
	{18, "Southern Africa", "", nil},
	{145, "Western Asia", "", []string{"middle east"}},
	{143, "Central Asia", "", nil},
	{30, "Eastern Asia", "", []string{"east asia"}},
	{35, "South-eastern Asia", "", []string{"southeast asia", "south-east asia"}},
	{34, "Southern Asia", "", []string{"south asia"}},
	{151, "Eastern Europe", "", nil},
	{154, "Northern Europe", "", []string{"scandinavia", "nordic countries"}},
	{39, "Southern Europe", "", nil},
	{155, "Western Europe", "", nil},
	{53, "Australia and New Zealand", "", nil},

	{840, "United States", "US", []string{"usa", "united states of america", "america", "u.s."}},
	{124, "Canada", "CA", nil},
	{484, "Mexico", "MX", nil},
	{76, "Brazil", "BR", nil},
	{32, "Argentina", "AR", nil},
	{152, "Chile", "CL", nil},
	{170, "Colombia", "CO", nil},
	{604, "Peru", "PE", nil},
	{826, "United Kingdom", "GB", []string{"uk", "britain", "great britain", "england", "scotland", "wales"}},
	{250, "France", "FR", nil},
	{276, "Germany", "DE", nil},
	{380, "Italy", "IT", nil},
	{724, "Spain", "ES", nil},
	{620, "Portugal", "PT", nil},
	{528, "Netherlands", "NL", []string{"holland"}},
	{56, "Belgium", "BE", nil},
	{756, "Switzerland", "CH", nil},
	{40, "Austria", "AT", nil},
	{752, "Sweden", "SE", nil},
	{578, "Norway", "NO", nil},
	{208, "Denmark", "DK", nil},
	{246, "Finland", "FI", nil},
	{372, "Ireland", "IE", nil},
	{616, "Poland", "PL", nil},
	{804, "Ukraine", "UA", nil},
	{643, "Russia", "RU", []string{"russian federation"}},
	{300, "Greece", "GR", nil},
	{792, "Turkey", "TR", []string{"turkiye"}},
	{156, "China", "CN", []string{"people's republic of china"}},
	{392, "Japan", "JP", nil},
	{410, "South Korea", "KR", []string{"korea", "republic of korea"}},
	{356, "India", "IN", nil},
	{586, "Pakistan", "PK", nil},
	{50, "Bangladesh", "BD", nil},
	{360, "Indonesia", "ID", nil},
	{608, "Philippines", "PH", nil},
	{704, "Vietnam", "VN", []string{"viet nam"}},
	{764, "Thailand", "TH", nil},
	{458, "Malaysia", "MY", nil},
	{702, "Singapore", "SG", nil},
	{158, "Taiwan", "TW", nil},
	{344, "Hong Kong", "HK", nil},
	{36, "Australia", "AU", nil},
	{554, "New Zealand", "NZ", nil},
	{710, "South Africa", "ZA", nil},
	{566, "Nigeria", "NG", nil},
	{404, "Kenya", "KE", nil},
	{818, "Egypt", "EG", nil},
	{231, "Ethiopia", "ET", nil},
	{288, "Ghana", "GH", nil},
	{504, "Morocco", "MA", nil},
	{376, "Israel", "IL", nil},
	{682, "Saudi Arabia", "SA", nil},
	{784, "United Arab Emirates", "AE", []string{"uae"}},
	{364, "Iran", "IR", nil},
	{368, "Iraq", "IQ", nil},
	{4, "Afghanistan", "AF", nil},
	{524, "Nepal", "NP", nil},
	{144, "Sri Lanka", "LK", nil},
}

var (
	m49ByKey     = map[string]int{}
	m49ByCode    = map[int]string{}
	m49Countries = map[int]struct{}{}
)

func init() {
	for _, a := range m49Areas {
		m49ByCode[a.code] = a.name
		m49ByKey[strings.ToLower(a.name)] = a.code
		if a.alpha2 != "" {
			m49ByKey[strings.ToLower(a.alpha2)] = a.code
			m49Countries[a.code] = struct{}{}
		}
		for _, alias := range a.aliases {
			m49ByKey[alias] = a.code
		}
	}
}

// LookupM49 resolves a place name, alias or ISO alpha-2 code to its M49 code.
func LookupM49(place string) (int, bool) {
	key := strings.ToLower(strings.TrimSpace(place))
	key = strings.TrimPrefix(key, "the ")
	if key == "" {
		return 0, false
	}
	code, ok := m49ByKey[key]
	return code, ok
}

// M49Name returns the display name for a code, or "" when unknown.
func M49Name(code int) string {
	return m49ByCode[code]
}

// M49IsCountry reports whether code identifies a single country rather than
// the world or a continental region.
func M49IsCountry(code int) bool {
	_, ok := m49Countries[code]
	return ok
}
