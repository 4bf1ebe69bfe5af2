// Package permissions resolves which content pages a member may open, merging
// the base pages of their plan with per-user grants.
package permissions

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
)

// PageAdmin is the page guarding the administration screens.
const PageAdmin = "admin"

//go:embed catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Pages []string            `yaml:"pages"`
	Plans map[string][]string `yaml:"plans"`
}

// Catalog maps plans to their base pages.
type Catalog struct {
	pages   []string
	pageSet map[string]struct{}
	plans   map[domain.Plan][]string
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("permissions: invalid embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog from path, falling back to the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog and checks that every plan only references declared pages.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(file.Pages) == 0 {
		return nil, fmt.Errorf("catalog declares no pages")
	}

	c := &Catalog{
		pageSet: make(map[string]struct{}, len(file.Pages)),
		plans:   make(map[domain.Plan][]string, len(file.Plans)),
	}
	for _, page := range file.Pages {
		page = normalizePage(page)
		if page == "" {
			continue
		}
		if _, dup := c.pageSet[page]; dup {
			continue
		}
		c.pageSet[page] = struct{}{}
		c.pages = append(c.pages, page)
	}
	sort.Strings(c.pages)

	for name, pages := range file.Plans {
		plan := domain.Plan(strings.ToUpper(strings.TrimSpace(name)))
		if !plan.Valid() {
			return nil, fmt.Errorf("unknown plan %q", name)
		}
		set := make(map[string]struct{}, len(pages))
		for _, page := range pages {
			page = normalizePage(page)
			if _, ok := c.pageSet[page]; !ok {
				return nil, fmt.Errorf("plan %s references unknown page %q", plan, page)
			}
			set[page] = struct{}{}
		}
		c.plans[plan] = sortedKeys(set)
	}

	return c, nil
}

// Pages returns every page known to the catalog, sorted.
func (c *Catalog) Pages() []string {
	return append([]string(nil), c.pages...)
}

// IsPage reports whether page is declared in the catalog.
func (c *Catalog) IsPage(page string) bool {
	_, ok := c.pageSet[normalizePage(page)]
	return ok
}

// PlanPages returns the base pages for plan. Administrators get every page.
func (c *Catalog) PlanPages(plan domain.Plan) []string {
	if plan == domain.PlanAdmin {
		return c.Pages()
	}
	return append([]string(nil), c.plans[plan]...)
}

// Resolve returns the pages the user can open at time now.
//
// Administrators short-circuit to the full catalog. Users that are not active,
// or whose expiration date has passed, get nothing. Everyone else gets the union
// of the plan's base pages and their custom grants; grants naming pages the
// catalog does not know are ignored.
func (c *Catalog) Resolve(user *domain.User, now time.Time) []string {
	if user == nil {
		return []string{}
	}
	if user.IsAdmin() {
		return c.Pages()
	}
	if user.Status != domain.UserStatusActive || user.Expired(now) {
		return []string{}
	}

	set := make(map[string]struct{})
	for _, page := range c.plans[user.Plan] {
		set[page] = struct{}{}
	}
	for _, page := range user.CustomPermissions {
		page = normalizePage(page)
		if page == PageAdmin {
			continue
		}
		if _, ok := c.pageSet[page]; ok {
			set[page] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// CanAccess reports whether user may open page at time now.
func (c *Catalog) CanAccess(user *domain.User, page string, now time.Time) bool {
	page = normalizePage(page)
	if user.IsAdmin() {
		return true
	}
	for _, p := range c.Resolve(user, now) {
		if p == page {
			return true
		}
	}
	return false
}

// NormalizeGrants cleans a custom permission list: trims, lowercases, drops
// unknown pages and duplicates. Unknown entries are returned separately.
func (c *Catalog) NormalizeGrants(grants []string) (valid []string, unknown []string) {
	set := make(map[string]struct{}, len(grants))
	for _, g := range grants {
		page := normalizePage(g)
		if page == "" {
			continue
		}
		if _, ok := c.pageSet[page]; !ok || page == PageAdmin {
			unknown = append(unknown, g)
			continue
		}
		set[page] = struct{}{}
	}
	return sortedKeys(set), unknown
}

func normalizePage(page string) string {
	return strings.ToLower(strings.TrimSpace(page))
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
