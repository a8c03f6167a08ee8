// Package ingest はマルチソースの取り込みパイプラインを提供する。
// ソースアダプタの抽出結果を正規化し、期間フィルタ・重複排除・ソートを行い、
// フォールバックオーケストレータでティアを優先順に試行する。
package ingest

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/adminfeed/internal/model"
	"github.com/hitoshi/adminfeed/internal/security"
)

// MaxDescriptionLength は説明文の最大文字数（rune単位）。
const MaxDescriptionLength = 500

// identifierPatterns はフィード種別ごとの識別子パターン。
var identifierPatterns = map[model.FeedType]*regexp.Regexp{
	model.FeedTypeMARADMIN: regexp.MustCompile(`(?i)\b(MARADMIN)\s+(\d+)\s*/\s*(\d+)`),
	model.FeedTypeALNAV:    regexp.MustCompile(`(?i)\b(ALNAV)\s+(\d+)\s*/\s*(\d+)`),
	model.FeedTypeSECNAV:   regexp.MustCompile(`(?i)\b(SECNAV(?:INST)?)\s+(\d[\d.]*[A-Z]*)`),
}

// 識別子の前後にある区切り記号（"-", ":", "–", "—", "|"）
var (
	leadingSeparator  = regexp.MustCompile(`^\s*[-:–—|]+\s*`)
	trailingSeparator = regexp.MustCompile(`\s*[-:–—|]+\s*$`)
)

// publishedLayouts は上流で観測される日時フォーマット。先頭から順に試行する。
var publishedLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"1/2/2006",
	"01/02/2006",
	"2 Jan 2006",
}

// ssicSeries はSECNAV指令番号の大分類（SSIC）と名称の対応。
var ssicSeries = map[int]string{
	1000:  "Military Personnel",
	2000:  "Telecommunications",
	3000:  "Operations and Readiness",
	4000:  "Logistics",
	5000:  "General Administration and Management",
	6000:  "Medicine and Dentistry",
	7000:  "Financial Management",
	8000:  "Ordnance Material",
	9000:  "Ships Design and Material",
	10000: "General Material",
	11000: "Facilities and Activities Ashore",
	12000: "Civilian Personnel",
	13000: "Aeronautical and Astronautical Material",
}

// ExtractIdentifier はタイトルからフィード種別の識別子を抽出する。
// 識別子は大文字・単一空白・"/"前後の空白なしの正規形で返す。
// マッチしない場合はokがfalseになる。
func ExtractIdentifier(title string, feedType model.FeedType) (identifier string, loc []int, ok bool) {
	pattern, exists := identifierPatterns[feedType]
	if !exists {
		return "", nil, false
	}

	m := pattern.FindStringSubmatchIndex(title)
	if m == nil {
		return "", nil, false
	}

	prefix := strings.ToUpper(title[m[2]:m[3]])
	switch feedType {
	case model.FeedTypeSECNAV:
		number := strings.TrimRight(title[m[4]:m[5]], ".")
		identifier = prefix + " " + strings.ToUpper(number)
	default:
		identifier = fmt.Sprintf("%s %s/%s", prefix, title[m[4]:m[5]], title[m[6]:m[7]])
	}

	return identifier, m[:2], true
}

// Normalize はRawCandidateを正規化済みMessageに変換する。
// 識別子が抽出できないレコードはokがfalseとなり、呼び出し元で破棄される（エラーではない）。
// baseは相対リンクの解決に使用するフィードの基準URL。
// nowは日時が欠落・パース不能な場合の代替値であり、壁時計は参照しない。
func Normalize(raw model.RawCandidate, feedType model.FeedType, base *url.URL, now time.Time) (model.Message, bool) {
	title := strings.Join(strings.Fields(raw.Title), " ")

	var (
		identifier string
		subject    string
	)

	if raw.Placeholder {
		identifier = PlaceholderIdentifier(feedType)
		subject = title
	} else {
		id, loc, ok := ExtractIdentifier(title, feedType)
		if !ok {
			return model.Message{}, false
		}
		identifier = id
		subject = deriveSubject(title, loc)
	}

	msg := model.Message{
		Identifier:  identifier,
		Type:        feedType,
		Title:       title,
		Subject:     subject,
		Link:        resolveLink(base, raw.Link),
		PublishedAt: resolvePublished(raw, now),
		Description: truncate(security.PlainText(raw.Description), MaxDescriptionLength),
		Category:    raw.Category,
		Placeholder: raw.Placeholder,
	}

	if msg.Category == "" && feedType == model.FeedTypeSECNAV && !raw.Placeholder {
		msg.Category = DirectiveCategory(identifier)
	}

	return msg, true
}

// PlaceholderIdentifier は静的フォールバック用の識別子を返す。
func PlaceholderIdentifier(feedType model.FeedType) string {
	return string(feedType) + " PENDING"
}

// DirectiveCategory はSECNAV指令番号のSSIC大分類から分類名を返す。
// 判定できない場合は空文字列を返す。
func DirectiveCategory(identifier string) string {
	fields := strings.Fields(identifier)
	if len(fields) < 2 {
		return ""
	}

	number := fields[len(fields)-1]
	digits := number
	if i := strings.IndexFunc(number, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		digits = number[:i]
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return ""
	}

	return ssicSeries[n/1000*1000]
}

// deriveSubject は識別子と隣接する区切り記号を除いたタイトルを返す。
// 除去後に空になる場合はタイトル全体を返す。
func deriveSubject(title string, loc []int) string {
	before := trailingSeparator.ReplaceAllString(title[:loc[0]], "")
	after := leadingSeparator.ReplaceAllString(title[loc[1]:], "")

	subject := strings.TrimSpace(strings.TrimSpace(before) + " " + strings.TrimSpace(after))
	if subject == "" {
		return title
	}
	return subject
}

// resolveLink は相対URLをベースURLを基準に絶対URLに解決する。
// リンクが空の場合はベースURLを返す。
func resolveLink(base *url.URL, rawLink string) string {
	rawLink = strings.TrimSpace(rawLink)
	if base == nil {
		return rawLink
	}
	if rawLink == "" {
		return base.String()
	}

	ref, err := url.Parse(rawLink)
	if err != nil {
		return rawLink
	}
	return base.ResolveReference(ref).String()
}

// resolvePublished は公開日時を決定する。
// アダプタがパース済みの値を優先し、次に文字列をパースする。どちらも無ければnowを返す。
func resolvePublished(raw model.RawCandidate, now time.Time) time.Time {
	if raw.PublishedAt != nil && !raw.PublishedAt.IsZero() {
		return *raw.PublishedAt
	}
	if t, ok := ParsePublished(raw.Published); ok {
		return t
	}
	return now
}

// ParsePublished は上流の日時文字列を既知のフォーマットでパースする。
func ParsePublished(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// truncate は文字列をn文字（rune単位）以下に切り詰める。
// 切り詰めた場合は末尾を"..."にする。
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
