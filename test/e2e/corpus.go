// Package e2e provides end-to-end tests over a larger initiative corpus.
package e2e

import (
	"fmt"
	"strings"

	"github.com/citylab/agora/internal/models"
)

// CorpusInitiative is one initiative in the e2e corpus.
type CorpusInitiative struct {
	ID          string
	Title       string
	Description string
}

// QueryTestCase defines a retrieval query and the initiative ID(s) that must
// appear in the results. At least one of ExpectedIDs must be present.
type QueryTestCase struct {
	Query       string
	ExpectedIDs []string
	Description string
}

// Corpus holds initiatives and query test cases for e2e tests.
type Corpus struct {
	Initiatives  []CorpusInitiative
	TestCases    []QueryTestCase
	TotalDocs    int
	TotalQueries int
}

// BuildCorpus returns a corpus of citizen initiatives with varied content and
// retrieval test cases. Each initiative carries a distinctive signature phrase
// so queries can assert that the right initiative comes back.
func BuildCorpus() *Corpus {
	docs := buildInitiatives()
	cases := buildQueryTestCases(docs)
	return &Corpus{
		Initiatives:  docs,
		TestCases:    cases,
		TotalDocs:    len(docs),
		TotalQueries: len(cases),
	}
}

func buildInitiatives() []CorpusInitiative {
	topics := []struct {
		title       string
		description string
	}{
		{"Elm Street pocket park", "Build a pocket park on Elm Street with benches and native plants. The pocket park budget is limited to local sponsorships."},
		{"Night bus extension", "Extend the night bus service past midnight on weekends. The night bus extension covers the northern districts."},
		{"Community garden compost", "Set up a community garden compost program. Community garden compost bins reduce organic waste collection costs."},
		{"Protected bike lanes", "Paint and separate protected bike lanes on the ring road. Protected bike lanes improve cyclist safety at intersections."},
		{"Riverside cleanup weekends", "Organize riverside cleanup weekends each month. Riverside cleanup volunteers collect litter along the embankment."},
		{"School crossing guards", "Fund school crossing guards at the five busiest crossings. School crossing guards protect children during rush hour."},
		{"Public drinking fountains", "Install public drinking fountains in the main squares. Public drinking fountains reduce single-use plastic bottles."},
		{"Library late hours", "Keep the central library open late on exam weeks. Library late hours give students a quiet place to study."},
		{"Street tree planting", "Plant street trees along the southern boulevard. Street tree planting provides shade and cools the pavement."},
		{"Playground renovation", "Renovate the Oak Square playground equipment. Playground renovation replaces worn swings and adds rubber flooring."},
		{"Neighborhood repair cafe", "Host a monthly neighborhood repair cafe in the community hall. The repair cafe fixes small appliances and bicycles."},
		{"Traffic calming bumps", "Add traffic calming speed bumps near the kindergarten. Traffic calming slows cars on the narrow residential streets."},
		{"Stray cat shelter", "Build a small stray cat shelter behind the market. The stray cat shelter works with volunteer veterinarians."},
		{"Open-air cinema nights", "Run open-air cinema nights in the summer. Open-air cinema screenings are free and family friendly."},
		{"Rainwater collection barrels", "Distribute rainwater collection barrels to allotment holders. Rainwater collection reduces tap water used for irrigation."},
		{"Graffiti art wall", "Designate a legal graffiti art wall under the bridge. The graffiti art wall gives young artists a space to paint."},
		{"Senior walking groups", "Start guided senior walking groups twice a week. Senior walking groups meet at the health center."},
		{"Bicycle repair stations", "Install public bicycle repair stations with pumps and tools. Bicycle repair stations sit along the main cycling routes."},
		{"Wheelchair ramp audit", "Audit wheelchair ramps at all municipal buildings. The wheelchair ramp audit produces a prioritized repair list."},
		{"Dog park fencing", "Fence the informal dog park by the creek. Dog park fencing separates small and large dogs."},
		{"Solar panels on schools", "Put solar panels on the flat roofs of public schools. Solar panels cut electricity costs and teach pupils about energy."},
		{"Bus shelter benches", "Add benches and roofs to the bare bus shelters. Bus shelter benches help elderly riders wait comfortably."},
		{"Farmers market expansion", "Expand the Saturday farmers market to the west lot. Farmers market expansion adds twenty regional stalls."},
		{"Noise barrier hedge", "Grow a noise barrier hedge along the freight rail line. The noise barrier hedge dampens train noise for the row houses."},
		{"Public toilet refurbishment", "Refurbish the public toilets in the station underpass. Public toilet refurbishment includes accessible cabins."},
		{"Youth coding club", "Fund a youth coding club at the library. The youth coding club teaches programming basics after school."},
		{"Winter warming shelter", "Open a winter warming shelter in the old gym. The winter warming shelter offers hot drinks and beds in cold spells."},
		{"Crosswalk repainting", "Repaint faded crosswalks across the old town. Crosswalk repainting uses high-visibility thermoplastic stripes."},
		{"Beekeeping on rooftops", "Allow beekeeping on municipal rooftops. Rooftop beekeeping supports pollinators and produces local honey."},
		{"Swimming lessons voucher", "Give every second grader a swimming lessons voucher. The swimming lessons voucher covers a ten-week beginner course."},
		{"Storm drain cleaning", "Schedule storm drain cleaning before the autumn rains. Storm drain cleaning prevents the usual October flooding."},
		{"Little free libraries", "Place little free libraries in ten neighborhoods. Little free libraries let residents swap books freely."},
		{"Basketball court lights", "Add evening lights to the outdoor basketball court. Basketball court lights extend playing time in winter."},
		{"Composting workshops", "Offer composting workshops at the botanical garden. Composting workshops show households how to reduce food waste."},
		{"Historic facade grants", "Create small grants for historic facade restoration. Historic facade grants keep the merchant row streetscape intact."},
		{"Car-free Sunday", "Declare a car-free Sunday on the main avenue each month. Car-free Sunday opens the street to pedestrians and markets."},
		{"Allotment waiting list", "Digitize the allotment garden waiting list. The allotment waiting list is currently kept on paper cards."},
		{"Pedestrian bridge repair", "Repair the rusting pedestrian bridge over the canal. Pedestrian bridge repair restores the eastern commuter shortcut."},
		{"Recycling depot hours", "Extend recycling depot opening hours to Saturday afternoon. Recycling depot hours currently end before most people finish work."},
		{"Tool lending library", "Start a tool lending library in the community center basement. The tool lending library loans drills, ladders, and saws."},
	}

	out := make([]CorpusInitiative, 0, len(topics))
	for i, t := range topics {
		out = append(out, CorpusInitiative{
			ID:          fmt.Sprintf("e2e-init-%03d", i+1),
			Title:       t.title,
			Description: t.description,
		})
	}
	return out
}

func buildQueryTestCases(docs []CorpusInitiative) []QueryTestCase {
	phrases := []string{
		"pocket park budget",
		"night bus extension",
		"community garden compost",
		"protected bike lanes",
		"riverside cleanup volunteers",
		"school crossing guards",
		"public drinking fountains",
		"library late hours",
		"street tree planting",
		"playground renovation swings",
		"repair cafe appliances",
		"traffic calming kindergarten",
		"stray cat shelter",
		"open-air cinema nights",
		"rainwater collection barrels",
		"graffiti art wall",
		"senior walking groups",
		"bicycle repair stations",
		"wheelchair ramp audit",
		"dog park fencing",
		"solar panels schools",
		"farmers market expansion",
		"noise barrier hedge",
		"youth coding club",
		"winter warming shelter",
		"crosswalk repainting stripes",
		"rooftop beekeeping honey",
		"swimming lessons voucher",
		"storm drain cleaning",
		"little free libraries",
		"basketball court lights",
		"composting workshops waste",
		"historic facade grants",
		"car-free sunday avenue",
		"allotment waiting list",
		"pedestrian bridge repair",
		"recycling depot hours",
		"tool lending library",
	}
	var cases []QueryTestCase
	used := make(map[string]bool)
	for _, p := range phrases {
		for _, d := range docs {
			if used[d.ID] || !containsAllWords(d, p) {
				continue
			}
			cases = append(cases, QueryTestCase{
				Query:       p,
				ExpectedIDs: []string{d.ID},
				Description: fmt.Sprintf("query %q should return initiative %s", p, d.ID),
			})
			used[d.ID] = true
			break
		}
	}
	return cases
}

// containsAllWords reports whether every query word appears in the
// initiative's title or description, ignoring case.
func containsAllWords(d CorpusInitiative, phrase string) bool {
	text := strings.ToLower(d.Title + " " + d.Description)
	for _, w := range strings.Fields(strings.ToLower(phrase)) {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}

// ToInitiatives converts the corpus to model rows for seeding, all owned by
// authorID.
func (c *Corpus) ToInitiatives(authorID string) []*models.Initiative {
	out := make([]*models.Initiative, len(c.Initiatives))
	for i := range c.Initiatives {
		d := &c.Initiatives[i]
		out[i] = &models.Initiative{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Status:      models.StatusSubmitted,
			AuthorID:    authorID,
		}
	}
	return out
}
