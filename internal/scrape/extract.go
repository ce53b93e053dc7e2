package scrape

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/flagfinder/internal/model"
)

// ページ内の要素を特定するセレクタ
const (
	postImageSelector  = `div[role="presentation"] img`
	loginWallSelector  = `input[name="username"]`
	postsReadySelector = `article img`
)

// countPattern は "1,234" や "1.2M" のような件数表記に一致する。
var countPattern = regexp.MustCompile(`(\d[\d,.]*)\s*([KkMm]?)`)

// ExtractProfile はレンダリング済みのプロフィールページHTMLから投稿とフォロワー数を取り出す。
// 投稿は先頭から最大3件、フォロワー数は見つからなければ"0"とする。
func ExtractProfile(html string) (*model.Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile html: %w", err)
	}

	snap := &model.Snapshot{
		Followers: extractFollowers(doc),
		Posts:     extractPosts(doc),
	}
	if pic, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
		snap.ProfilePic = pic
	}

	return snap, nil
}

func extractPosts(doc *goquery.Document) []model.Post {
	posts := make([]model.Post, 0, model.MaxRecentPosts)
	doc.Find(postImageSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if strings.TrimSpace(src) == "" {
			return true
		}
		alt, _ := s.Attr("alt")
		posts = append(posts, model.Post{ImageURL: src, Caption: alt})
		return len(posts) < model.MaxRecentPosts
	})
	return posts
}

// extractFollowers は"Followers"を含む最初のspanからフォロワー数を取り出す。
// spanがない場合はog:descriptionとdescriptionのmetaを順に参照する。
func extractFollowers(doc *goquery.Document) string {
	var text string
	doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := s.Text()
		if strings.Contains(strings.ToLower(t), "followers") {
			text = t
			return false
		}
		return true
	})
	if n, ok := ParseCount(followersClause(text)); ok {
		return n
	}
	if n, ok := ParseCount(text); ok {
		return n
	}

	for _, sel := range []string{`meta[property="og:description"]`, `meta[name="description"]`} {
		content, _ := doc.Find(sel).First().Attr("content")
		if n, ok := ParseCount(followersClause(content)); ok {
			return n
		}
	}
	return "0"
}

// followersClause は"Followers"の直前にある件数表記を返す。
// "1,234 Followers, 56 Following" のように複数の件数が並ぶ文から取り出すために使う。
func followersClause(s string) string {
	i := strings.Index(strings.ToLower(s), "followers")
	if i <= 0 {
		return ""
	}
	prefix := s[:i]
	locs := countPattern.FindAllStringIndex(prefix, -1)
	if len(locs) == 0 {
		return ""
	}
	return prefix[locs[len(locs)-1][0]:]
}

// ParseCount は件数表記を整数の10進文字列に変換する。
// 桁区切りは取り除き、K/Mの接尾辞は倍率として扱う。
func ParseCount(s string) (string, bool) {
	m := countPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	digits, suffix := m[1], strings.ToLower(m[2])
	digits = strings.TrimRight(digits, ",.")

	if suffix == "" {
		plain := strings.NewReplacer(",", "", ".", "").Replace(digits)
		plain = strings.TrimLeft(plain, "0")
		if plain == "" {
			plain = "0"
		}
		return plain, true
	}

	f, err := strconv.ParseFloat(strings.ReplaceAll(digits, ",", ""), 64)
	if err != nil {
		return "", false
	}
	mult := 1e3
	if suffix == "m" {
		mult = 1e6
	}
	return strconv.FormatInt(int64(math.Round(f*mult)), 10), true
}
