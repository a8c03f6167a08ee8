package feed

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/adminfeed/internal/model"
	"github.com/hitoshi/adminfeed/internal/upstream"
)

// TierDef はフォールバックチェーンの1ティアの定義。
type TierDef struct {
	Kind model.Tier `yaml:"kind"`
	Name string     `yaml:"name,omitempty"`
	// URL はrss/scrapeティアの取得先。scrapeでは{year}を使用できる。
	URL string `yaml:"url,omitempty"`

	LinkSelector    string `yaml:"link_selector,omitempty"`
	RowSelector     string `yaml:"row_selector,omitempty"`
	DateSelector    string `yaml:"date_selector,omitempty"`
	SubjectSelector string `yaml:"subject_selector,omitempty"`

	// Title とDescription はstaticティアのプレースホルダー文言。
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`

	// MaxPages はsocialティアのページ上限。
	MaxPages int `yaml:"max_pages,omitempty"`
}

// Definition はフィード1件の定義。
type Definition struct {
	ID   string         `yaml:"id"`
	Type model.FeedType `yaml:"type"`
	// Origin は相対リンクを解決する基準URL。
	Origin string `yaml:"origin"`
	// ListingURL は利用者が直接閲覧できる一覧ページ。
	ListingURL string    `yaml:"listing_url"`
	Tiers      []TierDef `yaml:"tiers"`
}

// Validate は定義の整合性を検証する。
func (d Definition) Validate() error {
	if d.ID == "" {
		return errors.New("feed id is required")
	}
	if !d.Type.Valid() {
		return fmt.Errorf("feed %s: unsupported type %q", d.ID, d.Type)
	}
	if _, err := url.ParseRequestURI(d.Origin); err != nil {
		return fmt.Errorf("feed %s: invalid origin: %w", d.ID, err)
	}
	if len(d.Tiers) == 0 {
		return fmt.Errorf("feed %s: at least one tier is required", d.ID)
	}
	for i, tier := range d.Tiers {
		switch tier.Kind {
		case model.TierRSS, model.TierScrape:
			if tier.URL == "" {
				return fmt.Errorf("feed %s: tier %d (%s) requires url", d.ID, i, tier.Kind)
			}
		case model.TierSocial, model.TierStatic:
		default:
			return fmt.Errorf("feed %s: tier %d has unknown kind %q", d.ID, i, tier.Kind)
		}
	}
	return nil
}

// OriginURL はパース済みの基準URLを返す。
func (d Definition) OriginURL() *url.URL {
	u, err := url.Parse(d.Origin)
	if err != nil {
		return nil
	}
	return u
}

// DefaultDefinitions は組み込みのフィード定義を返す。
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			ID:         "maradmin",
			Type:       model.FeedTypeMARADMIN,
			Origin:     "https://www.marines.mil/News/Messages/",
			ListingURL: "https://www.marines.mil/News/Messages/MARADMINS/",
			Tiers: []TierDef{
				{
					Kind: model.TierRSS,
					URL:  "https://www.marines.mil/DesktopModules/ArticleCS/RSS.ashx?ContentType=6&Site=481&max=50&category=14336",
				},
				{
					Kind:         model.TierScrape,
					URL:          "https://www.marines.mil/News/Messages/MARADMINS/",
					LinkSelector: `a[href*="/Messages-Display/Article/"]`,
					RowSelector:  ".msg-item, li, tr",
					DateSelector: ".msg-pub-date, time",
				},
				{
					Kind:  model.TierStatic,
					Title: "MARADMIN messages are temporarily unavailable",
				},
			},
		},
		{
			ID:         "alnav",
			Type:       model.FeedTypeALNAV,
			Origin:     "https://www.mynavyhr.navy.mil/References/Messages/",
			ListingURL: "https://www.mynavyhr.navy.mil/References/Messages/",
			Tiers: []TierDef{
				{
					Kind:            model.TierScrape,
					URL:             upstream.ALNAVListingURL,
					LinkSelector:    "table a[href]",
					RowSelector:     "tr",
					SubjectSelector: "td:nth-child(2)",
					DateSelector:    "td:nth-child(3)",
				},
				{
					Kind:  model.TierStatic,
					Title: "ALNAV messages are temporarily unavailable",
				},
			},
		},
		{
			ID:         "secnav",
			Type:       model.FeedTypeSECNAV,
			Origin:     "https://www.secnav.navy.mil/doni/",
			ListingURL: upstream.DirectivesListingURL,
			Tiers: []TierDef{
				{
					Kind:            model.TierScrape,
					URL:             upstream.DirectivesListingURL,
					LinkSelector:    "table a[href]",
					RowSelector:     "tr",
					SubjectSelector: "td:nth-child(2)",
					DateSelector:    "td:last-child",
				},
				{
					Kind:  model.TierStatic,
					Title: "SECNAV directives are temporarily unavailable",
				},
			},
		},
		{
			ID:         "semperadmin",
			Type:       model.FeedTypeMARADMIN,
			Origin:     "https://www.facebook.com/semperadmin/",
			ListingURL: "https://www.facebook.com/semperadmin/",
			Tiers: []TierDef{
				{Kind: model.TierSocial},
				{
					Kind:  model.TierStatic,
					Title: "Semper Admin posts are temporarily unavailable",
				},
			},
		},
	}
}

// registryFile はYAMLレジストリファイルの形式。
type registryFile struct {
	Feeds []Definition `yaml:"feeds"`
}

// LoadDefinitions は組み込み定義にYAMLファイルの定義を適用して返す。
// 同じIDの定義は置き換え、新しいIDは末尾に追加する。pathが空の場合は組み込み定義のみ返す。
func LoadDefinitions(path string) ([]Definition, error) {
	defs := DefaultDefinitions()
	if path == "" {
		return defs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds config: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse feeds config: %w", err)
	}

	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.ID] = i
	}
	for _, d := range file.Feeds {
		if i, ok := index[d.ID]; ok {
			defs[i] = d
			continue
		}
		index[d.ID] = len(defs)
		defs = append(defs, d)
	}
	return defs, nil
}

// Registry はIDで検索できるフィード定義の集合。
type Registry struct {
	defs  []Definition
	index map[string]int
}

// NewRegistry は定義を検証してRegistryを生成する。IDの重複はエラーとする。
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(defs))}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.index[d.ID]; dup {
			return nil, fmt.Errorf("duplicate feed id: %s", d.ID)
		}
		r.index[d.ID] = len(r.defs)
		r.defs = append(r.defs, d)
	}
	return r, nil
}

// Get は指定IDの定義を返す。
func (r *Registry) Get(id string) (Definition, bool) {
	i, ok := r.index[id]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// IDs は登録済みのフィードIDを昇順で返す。
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.defs))
	for _, d := range r.defs {
		ids = append(ids, d.ID)
	}
	sort.Strings(ids)
	return ids
}

// Definitions は登録順の定義を返す。
func (r *Registry) Definitions() []Definition {
	return append([]Definition(nil), r.defs...)
}
