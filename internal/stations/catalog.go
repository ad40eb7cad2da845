// Package stations holds the static metro line catalog.
package stations

// Line names.
const (
	LinePurple = "purple"
	LineGreen  = "green"
	LineYellow = "yellow"
)

var catalog = map[string][]string{
	LinePurple: {
		"Baiyappanahalli", "Swami Vivekananda Road", "Indiranagar", "Halasuru",
		"Trinity", "MG Road", "Cubbon Park", "Vidhana Soudha", "Sir M Visvesvaraya",
		"Majestic", "Chickpet", "KR Market", "National College", "Lalbagh",
		"South End Circle", "Jayanagar", "RV Road", "Banashankari",
		"Jaya Prakash Nagar", "Yelachenahalli", "Konanakunte Cross",
		"Doddakallasandra", "Vajarahalli", "Thalaghattapura", "Silk Institute",
	},
	LineGreen: {
		"Nagasandra", "Dasarahalli", "Jalahalli", "Peenya Industry",
		"Peenya", "Goraguntepalya", "Yeshwanthpur", "Sandal Soap Factory",
		"Mahalakshmi", "Rajajinagar", "Kuvempu Road", "Srirampura",
		"Mantri Square Sampige Road", "Majestic", "Chickpet", "KR Market",
		"National College", "Lalbagh", "South End Circle", "Jayanagar",
		"RV Road", "Banashankari", "Jaya Prakash Nagar", "Yelachenahalli",
	},
	LineYellow: {
		"RV Road", "Jayanagar", "South End Circle", "Lalbagh",
		"National College", "KR Market", "Chickpet", "Majestic",
	},
}

// Catalog returns a copy of the line -> ordered stations mapping.
func Catalog() map[string][]string {
	copied := make(map[string][]string, len(catalog))
	for line, names := range catalog {
		copied[line] = append([]string(nil), names...)
	}
	return copied
}

// Stations returns the ordered stations of line.
func Stations(line string) ([]string, bool) {
	names, ok := catalog[line]
	if !ok {
		return nil, false
	}
	return append([]string(nil), names...), true
}
