package decktutor

// Game is a DeckTutor card game code
type Game string

const (
	GameMagic    Game = "mtg"
	GameWarcraft Game = "wow"
	GameYuGiOh   Game = "ygo"
)

// DefaultGame is the game a new client searches in
const DefaultGame = GameMagic

// Games maps every supported game to its display name
var Games = map[Game]string{
	GameMagic:    "Magic the Gathering",
	GameWarcraft: "World of Warcraft",
	GameYuGiOh:   "Yu-Gi-Oh!",
}

// Valid reports whether g is a known game
func (g Game) Valid() bool {
	_, ok := Games[g]
	return ok
}

// Name returns the display name, or the code for unknown games
func (g Game) Name() string {
	if name, ok := Games[g]; ok {
		return name
	}
	return string(g)
}

// CardState is the condition grade of a physical card
type CardState string

const (
	StateMint      CardState = "M"
	StateNearMint  CardState = "NM"
	StateExcellent CardState = "EX"
	StateVeryGood  CardState = "VG"
	StateGood      CardState = "GD"
	StatePlayed    CardState = "PL"
	StatePoor      CardState = "PO"
)

var CardStates = map[CardState]string{
	StateMint:      "Mint",
	StateNearMint:  "Near Mint",
	StateExcellent: "Excellent",
	StateVeryGood:  "Very Good",
	StateGood:      "Good",
	StatePlayed:    "Played",
	StatePoor:      "Poor",
}

// Valid reports whether s is a known card state
func (s CardState) Valid() bool {
	_, ok := CardStates[s]
	return ok
}

// CardLanguage is the print language of a card
type CardLanguage string

const (
	LanguageGerman             CardLanguage = "de"
	LanguageEnglish            CardLanguage = "en"
	LanguageSpanish            CardLanguage = "es"
	LanguageFrench             CardLanguage = "fr"
	LanguageItalian            CardLanguage = "it"
	LanguageJapanese           CardLanguage = "ja"
	LanguageKorean             CardLanguage = "ko"
	LanguagePortuguese         CardLanguage = "pt"
	LanguageRussian            CardLanguage = "ru"
	LanguageChineseSimplified  CardLanguage = "zh"
	LanguageChineseTraditional CardLanguage = "zh-tw"
)

var CardLanguages = map[CardLanguage]string{
	LanguageGerman:             "German",
	LanguageEnglish:            "English",
	LanguageSpanish:            "Spanish",
	LanguageFrench:             "French",
	LanguageItalian:            "Italian",
	LanguageJapanese:           "Japanese",
	LanguageKorean:             "Korean",
	LanguagePortuguese:         "Portuguese",
	LanguageRussian:            "Russian",
	LanguageChineseSimplified:  "Chinese Simplified",
	LanguageChineseTraditional: "Chinese Traditional",
}

// Valid reports whether l is a known card language
func (l CardLanguage) Valid() bool {
	_, ok := CardLanguages[l]
	return ok
}
