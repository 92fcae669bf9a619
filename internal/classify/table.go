package classify

import (
	"strings"

	"gamecal/internal/model"
)

// DefaultTable is the built-in game/platform table. Order matters: an event
// mentioning both "steam" and "riot" is a steam event.
func DefaultTable() Table {
	return Table{
		Rules: []Rule{
			{model.Category{ID: "steam", Label: "Steam", Color: "#1b2838"},
				[]string{"steam", "valve", "racing fest", "4x fest"}},
			{model.Category{ID: "valorant", Label: "Valorant", Color: "#ff4655"},
				[]string{"valorant", "riot"}},
			{model.Category{ID: "roblox", Label: "Roblox", Color: "#00a2ff"},
				[]string{"roblox"}},
			{model.Category{ID: "xbox", Label: "Xbox", Color: "#107c10"},
				[]string{"xbox", "microsoft", "game pass"}},
			{model.Category{ID: "psn", Label: "PlayStation", Color: "#003791"},
				[]string{"playstation", "psn", "ps4", "ps5", "sony"}},
			{model.Category{ID: "dota", Label: "Dota 2", Color: "#ff6b35"},
				[]string{"dota", "dota 2"}},
			{model.Category{ID: "league", Label: "League of Legends", Color: "#c89b3c"},
				[]string{"league", "lol", "league of legends"}},
			{model.Category{ID: "csgo", Label: "CS:GO", Color: "#f7931e"},
				[]string{"csgo", "counter-strike", "counter strike"}},
			{model.Category{ID: "minecraft", Label: "Minecraft", Color: "#62b47a"},
				[]string{"minecraft", "mojang"}},
			{model.Category{ID: "fortnite", Label: "Fortnite", Color: "#ff6b35"},
				[]string{"fortnite", "epic"}},
			{model.Category{ID: "apex", Label: "Apex Legends", Color: "#da2929"},
				[]string{"apex", "apex legends"}},
			{model.Category{ID: "overwatch", Label: "Overwatch", Color: "#ff9c00"},
				[]string{"overwatch", "blizzard"}},
		},
		General: []string{
			"game",
			"gaming",
			"esports",
			"tournament",
			"championship",
			"match",
		},
		GeneralCategory: model.Category{ID: GeneralID, Label: "General Gaming", Color: GeneralColor},
		DefaultCategory: model.Category{ID: DefaultID, Label: "Other", Color: NeutralColor},
	}
}

// FromCategories builds a table from categories loaded from a backend. Each
// category matches on its own lower-cased name; events that already carry a
// category ID bypass the keyword search entirely.
func FromCategories(cats []model.Category) Table {
	t := Table{
		DefaultCategory: model.Category{ID: DefaultID, Label: "Other", Color: NeutralColor},
	}
	for _, cat := range cats {
		if cat.ID == "" {
			continue
		}
		if cat.Label == "" {
			cat.Label = cat.ID
		}
		t.Rules = append(t.Rules, Rule{
			Category: cat,
			Keywords: []string{strings.ToLower(cat.Label)},
		})
	}
	return t
}
