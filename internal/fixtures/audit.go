package fixtures

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// AuditPage statically checks an embedded page's markup: it must parse, must
// not reuse an id, and must contain every id the checks rely on. Running the
// audit at startup catches a broken fixture before any browser is launched,
// where the failure would otherwise surface as a confusing locator error.
func AuditPage(name string, requiredIDs []string) error {
	f, err := Pages().Open(name)
	if err != nil {
		return fmt.Errorf("fixture page %q is missing: %w", name, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return fmt.Errorf("fixture page %q failed to parse: %w", name, err)
	}

	seen := make(map[string]int)
	doc.Find("[id]").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("id")
		seen[id]++
	})

	var problems []string
	for id, n := range seen {
		if n > 1 {
			problems = append(problems, fmt.Sprintf("id %q appears %d times", id, n))
		}
	}
	for _, id := range requiredIDs {
		if seen[id] == 0 {
			problems = append(problems, fmt.Sprintf("required id %q not found", id))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("fixture page %q failed audit: %s", name, strings.Join(problems, "; "))
	}
	return nil
}

// AuditAll runs AuditPage over every embedded page with its known-required
// ids. Pages without registered requirements are still checked for parse
// errors and duplicate ids.
func AuditAll() error {
	required := map[string][]string{
		"static.html": {"title", "items", "nameInput", "flavorSelect", "optIn", "keyEcho"},
		"bars.html":   {"generate", "clear", "chart"},
		"heap.html":   {"insertButton", "removeButton", "heapSize", "heapView"},
		"dialog.html": {"alertButton", "confirmButton", "promptButton", "resultDisplay"},
		"sort.html":   {"sortButton", "status", "array"},
		"canvas.html": {"drawButton", "board"},
		"mouse.html":  {"pad", "lastEvent", "lastPos"},
	}

	entries, err := fs.ReadDir(Pages(), ".")
	if err != nil {
		return fmt.Errorf("failed to list fixture pages: %w", err)
	}
	for _, entry := range entries {
		if err := AuditPage(entry.Name(), required[entry.Name()]); err != nil {
			return err
		}
	}
	return nil
}
