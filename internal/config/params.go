package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// CategoryTarget is one monitored subcategory price window, parsed from a
// line of the categories file:
//
//	category name, subcategory name, priceMin, priceMax, priceStep
type CategoryTarget struct {
	CategoryName    string
	SubcategoryName string
	PriceMin        int
	PriceMax        int
	PriceStep       int
}

func (t CategoryTarget) String() string {
	return strings.Join([]string{
		t.CategoryName, t.SubcategoryName,
		strconv.Itoa(t.PriceMin), strconv.Itoa(t.PriceMax), strconv.Itoa(t.PriceStep),
	}, ", ")
}

// Targets are the configured monitoring inputs of one run.
type Targets struct {
	AdminRecipients  []string
	ReportRecipients []string
	Articles         []string
	Categories       []CategoryTarget
}

// LoadTargets reads and validates all monitored-target files named by the
// configuration.
func LoadTargets(cfg *Config) (*Targets, error) {
	admins, err := readLines(cfg.AdminContactsFile)
	if err != nil {
		return nil, err
	}
	if len(admins) == 0 {
		return nil, errors.Mark(errors.Newf("no admin recipients in %s", cfg.AdminContactsFile), ErrConfiguration)
	}
	reporters, err := readLines(cfg.ReportContactsFile)
	if err != nil {
		return nil, err
	}
	articles, err := readLines(cfg.ArticlesFile)
	if err != nil {
		return nil, err
	}
	catLines, err := readLines(cfg.CategoriesFile)
	if err != nil {
		return nil, err
	}

	targets := &Targets{AdminRecipients: admins, ReportRecipients: reporters, Articles: articles}
	for _, line := range catLines {
		t, err := ParseCategoryTarget(line)
		if err != nil {
			return nil, err
		}
		targets.Categories = append(targets.Categories, t)
	}
	return targets, nil
}

// ParseCategoryTarget parses and validates one category monitor line.
func ParseCategoryTarget(line string) (CategoryTarget, error) {
	bad := func(msg string) (CategoryTarget, error) {
		return CategoryTarget{}, errors.Mark(errors.Newf("invalid category target %q: %s", line, msg), ErrConfiguration)
	}

	tokens := strings.Split(line, ",")
	if len(tokens) != 5 {
		return bad("expected 5 comma-separated columns")
	}
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
	}

	t := CategoryTarget{CategoryName: tokens[0], SubcategoryName: tokens[1]}
	if t.CategoryName == "" {
		return bad("category name is empty")
	}
	if t.SubcategoryName == "" {
		return bad("subcategory name is empty")
	}

	var err error
	if t.PriceMin, err = strconv.Atoi(tokens[2]); err != nil {
		return bad("priceMin is not an integer")
	}
	if t.PriceMax, err = strconv.Atoi(tokens[3]); err != nil {
		return bad("priceMax is not an integer")
	}
	if t.PriceStep, err = strconv.Atoi(tokens[4]); err != nil {
		return bad("priceStep is not an integer")
	}

	if !(0 <= t.PriceMin && t.PriceMin <= t.PriceMax) {
		return bad("want 0 <= priceMin <= priceMax")
	}
	if !(0 < t.PriceStep && t.PriceStep <= t.PriceMax-t.PriceMin) {
		return bad("want 0 < priceStep <= priceMax - priceMin")
	}
	return t, nil
}

// readLines returns all non-empty, non-comment lines of a text file,
// stripped of surrounding whitespace.
func readLines(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read %s", filename), ErrConfiguration)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read %s", filename), ErrConfiguration)
	}
	return lines, nil
}
