package domain

// ContentKind перечисляет поддерживаемые виды содержимого сообщений.
type ContentKind string

const (
	KindText      ContentKind = "text"
	KindPhoto     ContentKind = "photo"
	KindVideo     ContentKind = "video"
	KindDocument  ContentKind = "document"
	KindVoice     ContentKind = "voice"
	KindAudio     ContentKind = "audio"
	KindSticker   ContentKind = "sticker"
	KindVideoNote ContentKind = "video_note"
	KindAnimation ContentKind = "animation"
	KindContact   ContentKind = "contact"
	KindLocation  ContentKind = "location"
	KindVenue     ContentKind = "venue"
	KindPoll      ContentKind = "poll"
	KindDice      ContentKind = "dice"
	// KindUnknown означает содержимое вне закрытого перечня: такие сообщения
	// доставляются дословным копированием на стороне транспорта.
	KindUnknown ContentKind = "unknown"
)

// Content — закрытое объединение видов содержимого. Каждый вид несёт только
// свои естественные поля; остальные остаются нулевыми.
type Content struct {
	Kind    ContentKind
	Text    string
	FileID  string
	Caption string

	// video note
	Length   int
	Duration int

	// contact
	PhoneNumber string
	FirstName   string
	LastName    string

	// location и venue
	Latitude  float64
	Longitude float64
	Title     string
	Address   string

	// poll
	Question    string
	Options     []string
	IsAnonymous bool
	PollType    string

	// dice
	Emoji string
}

// MessageRef адресует сообщение в пределах чата.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Message — входящее сообщение в терминах ядра маршрутизации.
type Message struct {
	Ref       MessageRef
	From      int64
	FirstName string

	// Тема форума, если сообщение отправлено внутри темы группы.
	IsTopic bool
	TopicID int64

	// Отправитель оригинала для пересланных сообщений (0, если скрыт).
	ForwardFrom int64

	// Сообщение, на которое ответили (nil, если ответа нет).
	ReplyTo *Message

	Content Content
}
