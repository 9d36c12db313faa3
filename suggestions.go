package main

// suggestion is a canned question with a short label for narrow terminals.
type suggestion struct {
	Query string
	Short string
}

var suggestedQueries = []suggestion{
	{"What is ELISA", "What is ELISA"},
	{"Compare FSRD and FTMD usage trends", "FSRD vs FTMD trends"},
	{"Compare usage during exams", "Exams vs normal"},
	{"Top 3 buildings with highest usage last year", "Top 3 buildings"},
	{"Forecast CC Barat usage during holidays", "CC Barat holiday forecast"},
	{"Predict Labtek VI peak hours next week", "Labtek VI peak forecast"},
	{"Average Engineering Physics Building usage during summer", "Engineering Physics summer usage"},
	{"Compare STEI usage: weekdays vs weekends", "STEI weekdays vs weekends"},
	{"Forecast ITB usage for next academic year", "ITB yearly forecast"},
	{"Labtek III usage trends last 3 semesters", "Labtek III trends"},
	{"Predict FTI usage during next major event", "FTI event forecast"},
	{"Compare CC Timur and Barat peak usage", "CC Timur vs Barat peak"},
	{"Total ITB usage over the past decade", "Decade total usage"},
	{"Forecast Labtek VII usage during winter break", "Labtek VII winter forecast"},
	{"Compare SF and FMIPA usage trends", "SF vs FMIPA trends"},
}

// narrowSuggestions is how many suggestions fit a narrow terminal.
const narrowSuggestions = 6

// visibleSuggestions returns the suggestions to show at the given width,
// using short labels when the terminal is narrow.
func visibleSuggestions(width int) []string {
	narrow := width > 0 && width < 80
	var out []string
	for i, s := range suggestedQueries {
		if narrow {
			if i >= narrowSuggestions {
				break
			}
			out = append(out, s.Short)
			continue
		}
		out = append(out, s.Query)
	}
	return out
}

// suggestionQuery maps a displayed label back to the full question.
func suggestionQuery(label string) string {
	for _, s := range suggestedQueries {
		if s.Short == label || s.Query == label {
			return s.Query
		}
	}
	return label
}
