package flow

import (
	"fmt"
	"strings"

	"github.com/yulbax/SecretSantaBot/internal/i18n"
	"github.com/yulbax/SecretSantaBot/internal/models"
	"github.com/yulbax/SecretSantaBot/internal/santa"
)

// Callback action tags. Payloads are "<action>:<arg>".
const (
	actionLang      = "lang"
	actionView      = "view"
	actionWishlist  = "wish"
	actionLeave     = "leave"
	actionDelete    = "del"
	actionStart     = "start"
	actionMsgGiftee = "anon"
	actionMsgSanta  = "santa"
)

// matchesLabel reports whether the text equals the localized label in the
// player's language (or the fallback language, so a stale keyboard still
// works after a language switch).
func (p *Processor) matchesLabel(player *models.Player, text, key string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.EqualFold(trimmed, p.loc.Get(player.Language, key)) {
		return true
	}
	return strings.EqualFold(trimmed, p.loc.Get(models.DefaultLanguage, key))
}

// menuKeyboard is the persistent reply keyboard with the three main actions.
func (p *Processor) menuKeyboard(lang models.Language) [][]Button {
	return [][]Button{
		{{Label: p.loc.Get(lang, "cmd.create_game")}},
		{{Label: p.loc.Get(lang, "cmd.my_games")}},
		{{Label: p.loc.Get(lang, "cmd.change_language")}},
	}
}

// cancelKeyboard accompanies every free-text prompt that supports aborting.
func (p *Processor) cancelKeyboard(lang models.Language) [][]Button {
	return [][]Button{{{Label: p.loc.Get(lang, "cmd.cancel")}}}
}

// languageKeyboard is an inline keyboard, two languages per row.
func languageKeyboard() [][]Button {
	var rows [][]Button
	var row []Button
	for _, lang := range models.AllLanguages {
		row = append(row, Button{
			Label: i18n.LanguageName(lang),
			Data:  actionLang + ":" + string(lang),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// inviteLink builds the join-by-invite deep link for a recruiting game.
func (p *Processor) inviteLink(code string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", p.botName, code)
}

// renderGameView formats the game card for one viewer, with the buttons that
// make sense for the game's phase and the viewer's role.
func (p *Processor) renderGameView(viewer *models.Player, g *santa.Game) (string, [][]Button) {
	lang := viewer.Language
	id := g.ID.String()

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", g.Name)
	b.WriteString(p.loc.Getf(lang, "view.status", p.loc.Get(lang, "status."+g.Status.String())))
	if !g.StartDate.IsZero() && !g.EndDate.IsZero() {
		b.WriteString("\n")
		b.WriteString(p.loc.Getf(lang, "view.dates",
			g.StartDate.Format(dateLayout), g.EndDate.Format(dateLayout)))
	}

	names := make([]string, 0, len(g.Participants))
	for _, participant := range g.Participants {
		names = append(names, participant.Name)
	}
	b.WriteString("\n")
	b.WriteString(p.loc.Getf(lang, "view.participants", len(names), strings.Join(names, ", ")))

	if g.IsParticipant(viewer.ID) {
		b.WriteString("\n\n")
		b.WriteString(p.loc.Getf(lang, "view.your_wishlist", p.wishlistOrEmpty(lang, g, viewer.ID)))
	}

	if g.Status == santa.StatusInProgress {
		if gifteeID, ok := g.GifteeOf(viewer.ID); ok {
			if giftee, ok := g.Participants[gifteeID]; ok {
				b.WriteString("\n\n")
				b.WriteString(p.loc.Getf(lang, "view.your_giftee", giftee.Name))
				b.WriteString("\n")
				b.WriteString(p.loc.Getf(lang, "view.giftee_wishlist", p.wishlistOrEmpty(lang, g, gifteeID)))
			}
		}
	}

	var rows [][]Button
	switch g.Status {
	case santa.StatusRecruiting:
		if g.IsParticipant(viewer.ID) {
			rows = append(rows, []Button{{
				Label: p.loc.Get(lang, "btn.edit_wishlist"),
				Data:  actionWishlist + ":" + id,
			}})
		}
		if viewer.ID == g.CreatorID {
			rows = append(rows,
				[]Button{{Label: p.loc.Get(lang, "btn.start_now"), Data: actionStart + ":" + id}},
				[]Button{{Label: p.loc.Get(lang, "btn.delete"), Data: actionDelete + ":" + id}},
			)
		} else if g.IsParticipant(viewer.ID) {
			rows = append(rows, []Button{{
				Label: p.loc.Get(lang, "btn.leave"),
				Data:  actionLeave + ":" + id,
			}})
		}
	case santa.StatusInProgress:
		if _, ok := g.GifteeOf(viewer.ID); ok {
			rows = append(rows,
				[]Button{{Label: p.loc.Get(lang, "btn.msg_giftee"), Data: actionMsgGiftee + ":" + id}},
				[]Button{{Label: p.loc.Get(lang, "btn.msg_santa"), Data: actionMsgSanta + ":" + id}},
			)
		}
	}
	return b.String(), rows
}

func (p *Processor) wishlistOrEmpty(lang models.Language, g *santa.Game, userID int64) string {
	if text := g.Wishlists[userID]; text != "" {
		return text
	}
	return p.loc.Get(lang, "view.empty_wishlist")
}

// renderGameList builds the "my games" message: one inline button per active
// game opening its view.
func (p *Processor) renderGameList(viewer *models.Player, games []*santa.Game) (string, [][]Button) {
	if len(games) == 0 {
		return p.loc.Get(viewer.Language, "list.empty"), nil
	}
	rows := make([][]Button, 0, len(games))
	for _, g := range games {
		rows = append(rows, []Button{{
			Label: g.Name,
			Data:  actionView + ":" + g.ID.String(),
		}})
	}
	return p.loc.Get(viewer.Language, "list.header"), rows
}
