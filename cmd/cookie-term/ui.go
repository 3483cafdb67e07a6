package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"
	"github.com/MRamiBalles/CookieClicker/server/internal/engine"
	"github.com/MRamiBalles/CookieClicker/server/internal/events"
	"github.com/MRamiBalles/CookieClicker/server/internal/format"
)

const noticeDuration = 3 * time.Second

// game is what the terminal needs from the engine.
type game interface {
	Click() float64
	Purchase(ctx context.Context, kind economy.Kind) error
	Prestige(ctx context.Context) (int, error)
	Save(ctx context.Context) error
	SetSoundEnabled(ctx context.Context, enabled bool)
	SetNumberFormat(ctx context.Context, mode economy.NumberFormat) error
	View() engine.View
}

var (
	styleTitle   = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleLabel   = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleCanBuy  = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleTooDear = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleCursor  = tcell.StyleDefault.Reverse(true)
	styleNotice  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleHelp    = tcell.StyleDefault.Foreground(tcell.ColorBlue)
)

// ui renders engine views and turns keys into commands.
type ui struct {
	screen   tcell.Screen
	game     game
	selected int
	now      func() time.Time

	mu          sync.Mutex
	notice      string
	noticeUntil time.Time
}

func newUI(screen tcell.Screen, g game) *ui {
	return &ui{screen: screen, game: g, now: time.Now}
}

func (u *ui) setNotice(msg string) {
	u.mu.Lock()
	u.notice = msg
	u.noticeUntil = u.now().Add(noticeDuration)
	u.mu.Unlock()
}

func (u *ui) currentNotice() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.now().After(u.noticeUntil) {
		return ""
	}
	return u.notice
}

// handleEvent turns engine outcomes into a status line.
func (u *ui) handleEvent(ev events.GameEvent) {
	switch p := ev.Payload.(type) {
	case events.PurchaseRejectedPayload:
		u.setNotice(fmt.Sprintf("Not enough cookies: need %s, have %s",
			format.Format(p.Required, economy.NumberFormatFlat), format.Format(p.Available, economy.NumberFormatFlat)))
	case events.PrestigeRejectedPayload:
		u.setNotice("Prestige needs " + format.Format(p.Required, economy.NumberFormatAbbreviated) + " cookies")
	case events.PrestigedPayload:
		u.setNotice(fmt.Sprintf("Prestiged! Multiplier x%.1f", p.Multiplier))
	case events.PersistencePayload:
		switch ev.Type {
		case events.EventTypeSaved:
			u.setNotice("Game saved")
		case events.EventTypeSaveFailed:
			u.setNotice("Save failed: " + p.Error)
		case events.EventTypeLoadFailed:
			u.setNotice("Save unreadable, started fresh")
		}
	}
}

// handleKey runs the command bound to ev. It returns false to quit.
func (u *ui) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyEnter:
		u.game.Click()
		return true
	case tcell.KeyUp:
		u.move(-1)
		return true
	case tcell.KeyDown:
		u.move(1)
		return true
	case tcell.KeyRune:
	default:
		return true
	}

	r := ev.Rune()
	switch {
	case r == 'q':
		return false
	case r == ' ':
		u.game.Click()
	case r == 'k':
		u.move(-1)
	case r == 'j':
		u.move(1)
	case r == 'b':
		u.buy(ctx, u.selected)
	case r >= '1' && r <= '9':
		u.buy(ctx, int(r-'1'))
	case r == 'p':
		_, _ = u.game.Prestige(ctx)
	case r == 's':
		_ = u.game.Save(ctx)
	case r == 'm':
		v := u.game.View()
		u.game.SetSoundEnabled(ctx, !v.Settings.SoundEnabled)
	case r == 'f':
		mode := economy.NumberFormatAbbreviated
		if u.game.View().Settings.NumberFormat == economy.NumberFormatAbbreviated {
			mode = economy.NumberFormatFlat
		}
		_ = u.game.SetNumberFormat(ctx, mode)
	}
	return true
}

func (u *ui) move(delta int) {
	n := len(economy.Kinds)
	u.selected = (u.selected + delta + n) % n
}

func (u *ui) buy(ctx context.Context, index int) {
	if index < 0 || index >= len(economy.Kinds) {
		return
	}
	u.selected = index
	_ = u.game.Purchase(ctx, economy.Kinds[index])
}

func (u *ui) drawText(x, y int, style tcell.Style, s string) {
	for _, r := range s {
		u.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// draw renders one frame.
func (u *ui) draw() {
	v := u.game.View()
	mode := v.Settings.NumberFormat

	u.screen.Clear()
	u.drawText(1, 0, styleTitle, "COOKIE CLICKER")
	u.drawText(1, 2, styleLabel, "Cookies: "+format.Format(v.Cookies, mode))
	u.drawText(1, 3, styleLabel, "Per second: "+format.RateIn(v.CookiesPerSecond, mode))
	u.drawText(1, 4, styleLabel, fmt.Sprintf("Multiplier: x%.1f", v.PrestigeMultiplier))

	for i, up := range v.Upgrades {
		style := styleTooDear
		if up.Affordable {
			style = styleCanBuy
		}
		if i == u.selected {
			style = styleCursor
		}
		line := fmt.Sprintf("%d %-15s lvl %-4d cost %-12s +%s/s",
			i+1, up.Name, up.Level, format.Format(up.Cost, mode), format.RateIn(up.UnitCps, mode))
		u.drawText(1, 6+i, style, line)
	}

	row := 7 + len(v.Upgrades)
	prestige := "Prestige: reach " + format.Format(economy.PrestigeThreshold, economy.NumberFormatAbbreviated) + " cookies"
	if v.CanPrestige {
		prestige = fmt.Sprintf("Prestige available: +%d (press p)", v.PrestigeGain)
	}
	u.drawText(1, row, styleLabel, prestige)

	sound := "on"
	if !v.Settings.SoundEnabled {
		sound = "off"
	}
	u.drawText(1, row+1, styleLabel, "Sound: "+sound+"  Numbers: "+string(mode))

	if n := u.currentNotice(); n != "" {
		u.drawText(1, row+3, styleNotice, n)
	}
	help := strings.Join([]string{"space click", "j/k select", "b buy", "1-8 buy", "p prestige", "s save", "m sound", "f format", "q quit"}, " | ")
	u.drawText(1, row+5, styleHelp, help)

	u.screen.Show()
}
