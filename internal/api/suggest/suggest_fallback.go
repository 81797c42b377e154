package suggest

import (
	"fmt"
	"strings"
	"time"

	"github.com/ogayu22918/Play-Plan/internal/api/rules"
	"github.com/ogayu22918/Play-Plan/internal/types"
)

// FallbackInput is everything the template generator may use. Any field may be empty.
type FallbackInput struct {
	Weather    *types.WeatherSnapshot
	Prefs      types.UserPrefs
	Tags       []string
	Candidates []types.Candidate
	NearPOIs   []string
	Now        time.Time
	Thresholds rules.Thresholds
}

var tagActivityNames = map[string]string{
	"museum":     "美術館・博物館めぐり",
	"cinema":     "映画鑑賞",
	"boardgame":  "ボードゲームカフェ",
	"spa":        "スーパー銭湯でひと休み",
	"arcade":     "ゲームセンター",
	"aquarium":   "水族館さんぽ",
	"mall":       "ショッピングモール散策",
	"sauna":      "サウナでととのう",
	"cafe":       "カフェでゆっくり",
	"bookstore":  "本屋めぐり",
	"bouldering": "ボルダリング体験",
	"trampoline": "トランポリンパーク",
	"karaoke":    "カラオケ",
}

var defaultActivities = []string{"近所の散歩", "カフェでひと休み", "気になるお店をのぞく"}

const fallbackPlans = 3

// BuildFallback renders three short plans, plus a fourth listing nearby places
// when any are known. It never fails.
func BuildFallback(in FallbackInput) string {
	if in.Thresholds.HotApparentTemp == 0 && in.Thresholds.ColdApparentTemp == 0 {
		in.Thresholds = rules.DefaultThresholds()
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	names := fallbackActivities(in.Candidates, in.Tags)
	moodText := moodPhrase(in.Prefs.Mood, in.Thresholds)
	weatherText := weatherPhrase(in.Weather, in.Prefs, in.Thresholds)
	slot := timeSlot(in.Weather, in.Now)
	durations := []string{"1〜2時間", "2〜3時間", "半日"}

	var b strings.Builder
	for i := 0; i < fallbackPlans; i++ {
		fmt.Fprintf(&b, "%d. %sに%sプラン: %s\n", i+1, slot, moodText, names[i])
		fmt.Fprintf(&b, "   - 所要時間: %s\n", durations[i])
		fmt.Fprintf(&b, "   - 天気: %s\n", weatherText)
		if in.Prefs.Budget != nil && *in.Prefs.Budget != "" {
			fmt.Fprintf(&b, "   - 予算: %s に収まる範囲で\n", *in.Prefs.Budget)
		}
	}
	if len(in.NearPOIs) > 0 {
		near := in.NearPOIs
		if len(near) > 5 {
			near = near[:5]
		}
		fmt.Fprintf(&b, "4. 近くのスポット: %s\n", strings.Join(near, "、"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// fallbackActivities prefers candidates, then tag-derived names, then defaults.
func fallbackActivities(candidates []types.Candidate, tags []string) []string {
	names := make([]string, 0, fallbackPlans)
	seen := make(map[string]struct{})
	add := func(n string) {
		if n == "" || len(names) == fallbackPlans {
			return
		}
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	for _, c := range candidates {
		add(strings.TrimSpace(c.Name))
	}
	for _, t := range tags {
		add(tagActivityNames[t])
	}
	for _, d := range defaultActivities {
		add(d)
	}
	for len(names) < fallbackPlans {
		names = append(names, defaultActivities[len(names)%len(defaultActivities)])
	}
	return names
}

func moodPhrase(mood string, th rules.Thresholds) string {
	m := strings.ToLower(mood)
	for _, k := range th.AdventureKeywords {
		if k != "" && strings.Contains(m, strings.ToLower(k)) {
			return "思いきり体を動かす"
		}
	}
	for _, k := range th.RelaxedKeywords {
		if k != "" && strings.Contains(m, strings.ToLower(k)) {
			return "のんびり過ごす"
		}
	}
	return "気軽に楽しむ"
}

func weatherPhrase(w *types.WeatherSnapshot, prefs types.UserPrefs, th rules.Thresholds) string {
	if w == nil || len(w.Current) == 0 {
		return "天気情報が取れないので、屋内の候補も用意しておきましょう"
	}
	c := rules.ConditionsOf(w)
	switch {
	case c.Precipitation > 0 || (th.IndoorPrecipProbability > 0 && c.PrecipitationProbability >= th.IndoorPrecipProbability):
		return "雨の可能性があるので屋内中心に"
	case c.HasApparentTemperature && c.ApparentTemperature >= th.HotApparentTemp:
		return "暑いので冷房の効いた場所でこまめに休憩を"
	case c.HasApparentTemperature && c.ApparentTemperature <= th.ColdApparentTemp:
		return "寒いので暖かい屋内で"
	case th.IndoorWindSpeed > 0 && c.WindSpeed10m >= th.IndoorWindSpeed:
		return "風が強いので屋内がおすすめ"
	case prefs.WantsIndoor():
		return "屋内で天気を気にせず"
	default:
		return "過ごしやすい天気なので外歩きも楽しめます"
	}
}

// timeSlot reads the local time from the weather's current.time when it
// parses, else from now.
func timeSlot(w *types.WeatherSnapshot, now time.Time) string {
	hour := now.Hour()
	if w != nil {
		if s, ok := w.Current["time"].(string); ok {
			if t, err := time.Parse("2006-01-02T15:04", s); err == nil {
				hour = t.Hour()
			}
		}
	}
	switch {
	case hour >= 5 && hour < 11:
		return "朝"
	case hour >= 11 && hour < 17:
		return "昼"
	case hour >= 17 && hour < 22:
		return "夕方から夜"
	default:
		return "深夜"
	}
}
