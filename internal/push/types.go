package push

// Project は通知の起点となるプロジェクトを表す。
// 外部ストアが所有しており、このパッケージは読み取りのみ行う。
type Project struct {
	// ID はプロジェクトの一意識別子。
	ID string `json:"id"`
	// Name はプロジェクト名。
	Name string `json:"name"`
	// OwnerIdentifier はプロジェクトオーナーのユーザー識別子。
	// メンバー一覧に含まれている必要はない。
	OwnerIdentifier string `json:"owner_identifier"`
	// MemberIdentifiers はプロジェクトメンバーのユーザー識別子一覧。
	MemberIdentifiers []string `json:"member_identifiers"`
}

// User は通知先となりうるユーザーを表す。
type User struct {
	// Identifier はユーザーの一意識別子。
	Identifier string `json:"identifier"`
	// Email はユーザーのメールアドレス。未設定の場合は空文字。
	Email string `json:"email,omitempty"`
	// DeliveryToken はプッシュ配信用のトークン。空の場合は配信不可能。
	DeliveryToken string `json:"delivery_token,omitempty"`
}

// Reachable はユーザーが配信トークンを持っているかを返す。
func (u *User) Reachable() bool {
	return u != nil && u.DeliveryToken != ""
}

// Recipient は解決済みの通知先1件を表す。
type Recipient struct {
	// Identifier はユーザー識別子。
	Identifier string `json:"identifier"`
	// DeliveryToken は配信トークン。
	DeliveryToken string `json:"delivery_token"`
	// DisplayLabel は結果レポート用の表示名。
	DisplayLabel string `json:"display_label"`
}

// RecipientSet は配信トークンで重複排除された通知先の順序付き集合。
// 1回の解決処理ごとに新しく生成され、配信後に破棄される。
type RecipientSet []Recipient

// Tokens は集合に含まれる配信トークンを順序通りに返す。
func (rs RecipientSet) Tokens() []string {
	tokens := make([]string, 0, len(rs))
	for _, r := range rs {
		tokens = append(tokens, r.DeliveryToken)
	}
	return tokens
}

// Notification は宛先に依存しない論理的な通知内容。
type Notification struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Body は通知の本文。
	Body string `json:"body"`
	// Data は任意の構造化データ。値は配信前に文字列へ変換される。
	// "link" と "origin" キーはリンクの組み立てに使用する。
	Data map[string]any `json:"data,omitempty"`
	// ImageURL は通知に添付する画像のURL。
	ImageURL string `json:"image_url,omitempty"`
	// Icon はアイコンの指定。空なら既定値を使う。
	Icon string `json:"icon,omitempty"`
	// Badge はバッジの指定。空なら既定値を使う。
	Badge string `json:"badge,omitempty"`
	// Sound は通知音の指定。空なら既定値を使う。
	Sound string `json:"sound,omitempty"`
}

// Payload はプロバイダにそのまま渡せる配信メッセージ1件。
// Token以外のフィールドは同一バッチ内で共通になる。
type Payload struct {
	// Token は配信先トークン。
	Token string `json:"token"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Body は通知の本文。
	Body string `json:"body"`
	// Data は文字列値のみを持つメタデータ。
	Data map[string]string `json:"data"`
	// ImageURL は画像URL。
	ImageURL string `json:"image_url,omitempty"`
	// Link は通知クリック時に開く絶対URL。
	Link string `json:"link"`
	// Icon はアイコン。
	Icon string `json:"icon"`
	// Badge はバッジ。
	Badge string `json:"badge"`
	// Sound は通知音。
	Sound string `json:"sound"`
}

// Outcome は1トークンへの配信結果。記録後は変更しない。
type Outcome struct {
	// Token は配信先トークン。
	Token string `json:"token"`
	// Success は配信に成功したかどうか。
	Success bool `json:"success"`
	// MessageID は成功時にプロバイダが返したメッセージID。
	MessageID string `json:"message_id,omitempty"`
	// ErrorCode は失敗時の分類済みエラーコード。
	ErrorCode ErrorCode `json:"error_code,omitempty"`
	// ErrorMessage は失敗時のエラーメッセージ。
	ErrorMessage string `json:"error_message,omitempty"`
}

// Permanent はトークンが恒久的に使えない失敗かどうかを返す。
func (o Outcome) Permanent() bool {
	return !o.Success && o.ErrorCode.Permanent()
}

// Summary は1回の配信処理の集計結果。永続化はしない。
type Summary struct {
	// SuccessCount は成功した配信数。
	SuccessCount int `json:"success_count"`
	// FailureCount は失敗した配信数。
	FailureCount int `json:"failure_count"`
	// TotalAttempted は入力メッセージ数。SuccessCount+FailureCountと常に一致する。
	TotalAttempted int `json:"total_attempted"`
	// Outcomes は入力順に並んだ配信結果。
	Outcomes []Outcome `json:"outcomes"`
	// Partial は期限切れにより途中で打ち切られた場合にtrueになる。
	Partial bool `json:"partial,omitempty"`
}

// RecipientReport は通知先と配信結果を対応付けたレポート1行。
type RecipientReport struct {
	Recipient
	Outcome Outcome `json:"outcome"`
}

// Task はタスク追加イベントの内容。
type Task struct {
	// ID はタスクの識別子。
	ID string `json:"id"`
	// Title はタスク名。
	Title string `json:"title"`
	// Description はタスクの説明。
	Description string `json:"description,omitempty"`
}
