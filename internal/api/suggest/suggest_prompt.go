package suggest

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ogayu22918/Play-Plan/internal/types"
)

const unspecified = "未指定"

// RetrievalQuery is the text embedded to look up candidate activities.
func RetrievalQuery(prefs types.UserPrefs, tags []string) string {
	budget := unspecified
	if prefs.Budget != nil && *prefs.Budget != "" {
		budget = *prefs.Budget
	}
	return fmt.Sprintf("気分:%s タグ:%s 予算:%s", prefs.Mood, strings.Join(tags, ","), budget)
}

// AllowedPlaceNames collects the real place names the model may mention:
// enriched places first, then nearby names, without duplicates.
func AllowedPlaceNames(candidates []types.Candidate, nearPOIs []string) []string {
	seen := make(map[string]struct{})
	var names []string
	add := func(n string) {
		n = strings.TrimSpace(n)
		if n == "" {
			return
		}
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	for _, c := range candidates {
		for _, p := range c.Places {
			add(p.Name)
		}
	}
	for _, n := range nearPOIs {
		add(n)
	}
	return names
}

// BuildPrompt composes the generation prompt. Place names outside allowed
// must not appear in the answer.
func BuildPrompt(prefs types.UserPrefs, weather map[string]any, candidates []types.Candidate, allowed []string) string {
	weatherJSON, err := json.MarshalNoEscape(weather)
	if err != nil {
		weatherJSON = []byte("{}")
	}
	candidatesJSON, err := json.MarshalNoEscape(candidates)
	if err != nil {
		candidatesJSON = []byte("[]")
	}

	radius := unspecified
	if prefs.RadiusKm != nil {
		radius = fmt.Sprintf("%dkm", *prefs.RadiusKm)
	}
	indoor := unspecified
	if prefs.Indoor != nil {
		indoor = fmt.Sprintf("%t", *prefs.Indoor)
	}
	budget := unspecified
	if prefs.Budget != nil && *prefs.Budget != "" {
		budget = *prefs.Budget
	}
	mood := prefs.Mood
	if mood == "" {
		mood = unspecified
	}

	var b strings.Builder
	b.WriteString("あなたは当日のレジャーを提案するコンシェルジュです。条件に合う、実行しやすく互いに異なる3つのプランを日本語で提案してください。\n")
	b.WriteString("各プランには次の6項目を含めてください:\n")
	b.WriteString("1. タイトル（〜なプラン）\n2. 魅力をひとことで\n3. 所要時間の目安\n4. 予算感（予算の指定があれば合わせる、なければ目安の幅）\n5. 天候（雨・暑さ・風）への配慮\n6. 混雑・満席時の代わりの小さなプラン\n")
	b.WriteString("各項目は40文字程度までで簡潔に、Markdownの番号付きリストで書いてください。前置きは不要です。\n\n")

	b.WriteString("[ユーザー条件]\n")
	fmt.Fprintf(&b, "気分: %s\n移動半径: %s\n屋内希望: %s\n予算: %s\n", mood, radius, indoor, budget)
	b.WriteString("[現在の天気]\n")
	b.Write(weatherJSON)
	b.WriteString("\n[候補アクティビティ]\n")
	b.Write(candidatesJSON)
	b.WriteString("\n[使用してよい施設名]\n")
	if len(allowed) == 0 {
		b.WriteString("なし。具体的な施設名・店名は一切書かず、一般的な名称（例: 近くのカフェ）を使ってください。\n")
	} else {
		for _, n := range allowed {
			fmt.Fprintf(&b, "- %s\n", n)
		}
		b.WriteString("上の一覧にない施設名・店名などの固有名詞を作らないでください。\n")
	}
	return strings.TrimSpace(b.String())
}
