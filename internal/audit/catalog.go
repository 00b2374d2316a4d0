package audit

// Definition describes a metric the native engine can report.
type Definition struct {
	ID       string
	Title    string
	HelpText string
	Mode     ScoringMode
	// Weight in the overall performance score; zero for unweighted audits.
	Weight float64
	curve  *curve
}

// curve is a log-normal scoring curve: values at p10 score 0.9, at median 0.5.
type curve struct {
	p10, median float64
}

var catalog = []Definition{
	{
		ID:       "first-contentful-paint",
		Title:    "First Contentful Paint",
		HelpText: "First Contentful Paint marks the time at which the first text or image is painted. Reduce render-blocking resources and server response time.",
		Mode:     ModeNumeric,
		Weight:   10,
		curve:    &curve{p10: 1800, median: 3000},
	},
	{
		ID:       "largest-contentful-paint",
		Title:    "Largest Contentful Paint",
		HelpText: "Largest Contentful Paint marks the time at which the largest text or image is painted. Optimize the largest element (image size, preload, priority hints).",
		Mode:     ModeNumeric,
		Weight:   25,
		curve:    &curve{p10: 2500, median: 4000},
	},
	{
		ID:       "total-blocking-time",
		Title:    "Total Blocking Time",
		HelpText: "Sum of all time periods between FCP and the end of the load where long tasks exceeded 50ms. Split long JavaScript tasks and defer non-critical scripts.",
		Mode:     ModeNumeric,
		Weight:   30,
		curve:    &curve{p10: 200, median: 600},
	},
	{
		ID:       "cumulative-layout-shift",
		Title:    "Cumulative Layout Shift",
		HelpText: "Cumulative Layout Shift measures the movement of visible elements within the viewport. Reserve space for images, ads and embeds.",
		Mode:     ModeNumeric,
		Weight:   25,
		curve:    &curve{p10: 0.1, median: 0.25},
	},
	{
		ID:       "server-response-time",
		Title:    "Initial server response time was short",
		HelpText: "Keep the server response time for the main document under 600 ms.",
		Mode:     ModeBinary,
	},
	{
		ID:       "document-title",
		Title:    "Document has a <title> element",
		HelpText: "The title gives screen reader users an overview of the page and is used by search engines.",
		Mode:     ModeBinary,
	},
	{
		ID:       "html-has-lang",
		Title:    "<html> element has a [lang] attribute",
		HelpText: "Specify a valid BCP 47 language on the <html> element so assistive technology pronounces text correctly.",
		Mode:     ModeBinary,
	},
	{
		ID:       "meta-viewport",
		Title:    "Has a <meta name=\"viewport\"> tag",
		HelpText: "A viewport meta tag optimizes the page for mobile screen sizes and avoids a 300 ms input delay.",
		Mode:     ModeBinary,
	},
	{
		ID:       "meta-description",
		Title:    "Document has a meta description",
		HelpText: "Meta descriptions may be included in search results to concisely summarize page content.",
		Mode:     ModeBinary,
	},
}

// serverResponseBudgetMs is the pass bar for server-response-time.
const serverResponseBudgetMs = 600

// Catalog returns the metrics the native chrome engine reports.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

func lookup(id string) Definition {
	for _, d := range catalog {
		if d.ID == id {
			return d
		}
	}
	return Definition{ID: id, Title: id, Mode: ModeInformative}
}
