package engine

import "github.com/MRamiBalles/CookieClicker/server/internal/domain/economy"

// UpgradeView is one shop row.
type UpgradeView struct {
	Kind        economy.Kind `json:"kind"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Icon        string       `json:"icon"`
	Level       int          `json:"level"`
	Cost        float64      `json:"cost"`
	Affordable  bool         `json:"affordable"`
	UnitCps     float64      `json:"unitCps"` // per level, multiplier applied
}

// View is everything a renderer needs to draw one frame.
type View struct {
	Cookies            float64          `json:"cookies"`
	CookiesPerSecond   float64          `json:"cookiesPerSecond"`
	PrestigeMultiplier float64          `json:"prestigeMultiplier"`
	PrestigeGain       int              `json:"prestigeGain"`
	CanPrestige        bool             `json:"canPrestige"`
	Settings           economy.Settings `json:"settings"`
	Upgrades           []UpgradeView    `json:"upgrades"`
}

// View builds a consistent read model in shop order.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := &e.state
	gain := st.PrestigePreview()
	v := View{
		Cookies:            st.Cookies,
		CookiesPerSecond:   st.CookiesPerSecond,
		PrestigeMultiplier: st.PrestigeMultiplier,
		PrestigeGain:       gain,
		CanPrestige:        gain >= 1,
		Settings:           st.Settings,
		Upgrades:           make([]UpgradeView, 0, len(economy.Kinds)),
	}
	for _, k := range economy.Kinds {
		u, _ := economy.Lookup(k)
		level := st.Levels[k]
		cost := economy.Cost(k, level)
		v.Upgrades = append(v.Upgrades, UpgradeView{
			Kind:        k,
			Name:        u.Name,
			Description: u.Description,
			Icon:        u.Icon,
			Level:       level,
			Cost:        cost,
			Affordable:  st.Cookies >= cost,
			UnitCps:     u.BaseCps * st.PrestigeMultiplier,
		})
	}
	return v
}
