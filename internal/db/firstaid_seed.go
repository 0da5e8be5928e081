package db

import "github.com/rescuelog/backend/internal/model"

// DefaultFirstAidGuides는 SEED_FIRST_AID=true 일 때 기동 시 upsert 되는 기본 가이드
func DefaultFirstAidGuides() []model.FirstAidGuide {
	const source = "American Red Cross First Aid Steps"
	return []model.FirstAidGuide{
		{
			Condition: "Bleeding",
			Steps: []string{
				"Put on gloves if available.",
				"Apply firm, direct pressure to the wound with a clean cloth.",
				"Keep pressure on until bleeding stops; add cloth on top if it soaks through.",
				"Call emergency services if bleeding is severe or does not stop.",
			},
			Source: source,
		},
		{
			Condition: "Burns",
			Steps: []string{
				"Remove the person from the source of the burn.",
				"Cool the burn under cool running water for at least 10 minutes.",
				"Cover loosely with a sterile, non-stick dressing.",
				"Do not apply ice, butter or ointments.",
			},
			Source: source,
		},
		{
			Condition: "Choking",
			Steps: []string{
				"Ask the person if they are choking and can speak.",
				"Give 5 back blows between the shoulder blades.",
				"Give 5 abdominal thrusts.",
				"Alternate until the object comes out or the person becomes unresponsive, then call emergency services.",
			},
			Source: source,
		},
		{
			Condition: "CPR",
			Steps: []string{
				"Check the scene and the person, then call emergency services.",
				"Place the heel of one hand in the center of the chest, other hand on top.",
				"Push hard and fast: at least 2 inches deep, 100 to 120 compressions per minute.",
				"Give 2 rescue breaths after every 30 compressions if trained.",
			},
			Source: source,
		},
	}
}
