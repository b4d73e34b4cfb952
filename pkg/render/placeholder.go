package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// missingMessageKey is the English title of a link to a message that no
// longer exists.
const missingMessageKey = "Comment in a nonexistent topic"

func init() {
	message.SetString(language.Russian, missingMessageKey, "Комментарий в несуществующем топике")
}

// PlaceholderTitle returns the localized title used for links to missing
// messages.
func PlaceholderTitle(tag language.Tag) string {
	return message.NewPrinter(tag).Sprintf(missingMessageKey)
}
