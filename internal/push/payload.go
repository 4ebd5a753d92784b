package push

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

const (
	// DefaultIcon は通知アイコンの既定値。
	DefaultIcon = "/icons/icon-192x192.png"
	// DefaultBadge はバッジの既定値。
	DefaultBadge = "/icons/badge-72x72.png"
	// DefaultSound は通知音の既定値。
	DefaultSound = "default"
)

// BuilderConfig はPayload Builderの既定値設定。
type BuilderConfig struct {
	// Origin は相対リンクの前に付与するオリジン（例: "https://app.example.com"）。
	Origin string
	// Icon はアイコンの既定値。
	Icon string
	// Badge はバッジの既定値。
	Badge string
	// Sound は通知音の既定値。
	Sound string
}

// Builder は論理的な通知からプロバイダ向けのPayloadを組み立てる。
// I/Oを行わず、失敗しない。
type Builder struct {
	cfg BuilderConfig
}

// NewBuilder は新しいBuilderを生成する。未設定の項目には既定値を使う。
func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.Icon == "" {
		cfg.Icon = DefaultIcon
	}
	if cfg.Badge == "" {
		cfg.Badge = DefaultBadge
	}
	if cfg.Sound == "" {
		cfg.Sound = DefaultSound
	}
	return &Builder{cfg: cfg}
}

// Build は1トークン分のPayloadを組み立てる。
func (b *Builder) Build(n Notification, token string) Payload {
	p := b.template(n)
	p.Token = token
	return p
}

// BuildAll は通知先ごとのPayloadを通知先の順序で組み立てる。
// テンプレートは1回だけ生成し、トークンだけを差し替える。
func (b *Builder) BuildAll(n Notification, tokens []string) []Payload {
	tmpl := b.template(n)
	payloads := make([]Payload, len(tokens))
	for i, token := range tokens {
		p := tmpl
		p.Data = maps.Clone(tmpl.Data)
		p.Token = token
		payloads[i] = p
	}
	return payloads
}

// template はトークン以外の全フィールドを埋めたPayloadを返す。
func (b *Builder) template(n Notification) Payload {
	data := stringifyData(n.Data)
	return Payload{
		Title:    n.Title,
		Body:     n.Body,
		Data:     data,
		ImageURL: n.ImageURL,
		Link:     b.resolveLink(data["link"], data["origin"]),
		Icon:     orDefault(n.Icon, b.cfg.Icon),
		Badge:    orDefault(n.Badge, b.cfg.Badge),
		Sound:    orDefault(n.Sound, b.cfg.Sound),
	}
}

// resolveLink はリンクを必ず絶対URLにする。
// 絶対URLはそのまま、相対パスはオリジンを前置し、未指定ならオリジン自身を返す。
func (b *Builder) resolveLink(link, origin string) string {
	if hasScheme(link) {
		return link
	}
	if origin == "" {
		origin = b.cfg.Origin
	}
	origin = strings.TrimRight(origin, "/")
	if link == "" {
		return origin + "/"
	}
	return origin + "/" + strings.TrimLeft(link, "/")
}

// hasScheme はリンクがスキーム（"https:" や "mailto:" など）で始まるかを判定する。
// スキームは英字で始まり、英数字と "+-." が続いて ":" で終わる。
func hasScheme(link string) bool {
	i := strings.IndexByte(link, ':')
	if i <= 0 {
		return false
	}
	for j, c := range link[:i] {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case j > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// stringifyData は構造化データの全ての値を文字列に変換する。
// プロバイダは文字列値のメタデータしか受け付けない。
func stringifyData(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case float64:
			// JSONの数値はfloat64になるため指数表記を避ける
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case float32:
			out[k] = strconv.FormatFloat(float64(val), 'f', -1, 32)
		case fmt.Stringer:
			out[k] = val.String()
		case map[string]any, []any:
			// JSONから来たネスト構造はJSON文字列として渡す
			if b, err := json.Marshal(val); err == nil {
				out[k] = string(b)
			} else {
				out[k] = fmt.Sprint(val)
			}
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func orDefault(v, d string) string {
	if v == "" {
		return d
	}
	return v
}
