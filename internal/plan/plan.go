// Package plan ships the default filing plan for personnel files: a
// hierarchical category tree with statutory retention periods, plus a
// starter set of classification rules for common payroll documents.
package plan

import (
	"fmt"

	"github.com/mboehler/aktis/internal/match"
	"github.com/mboehler/aktis/internal/storage"
)

type node struct {
	code      string
	name      string
	desc      string
	years     int
	trigger   string
	mandatory bool
	sort      int
	children  []child
}

type child struct {
	code  string
	name  string
	years int
}

var defaultPlan = []node{
	{
		code: "01", name: "Bewerbungsunterlagen",
		desc:  "Bewerbung, Lebenslauf, Zeugnisse vor Einstellung",
		years: 6, trigger: storage.TriggerExit, sort: 10,
	},
	{
		code: "02", name: "Arbeitsvertrag",
		desc:  "Arbeitsvertrag, Änderungen, Zusatzvereinbarungen",
		years: 10, trigger: storage.TriggerExit, mandatory: true, sort: 20,
		children: []child{
			{"02.01", "Arbeitsvertrag", 10},
			{"02.02", "Vertragsänderungen", 10},
			{"02.03", "Zusatzvereinbarungen", 10},
			{"02.04", "Befristungen", 10},
		},
	},
	{
		code: "03", name: "Persönliche Daten",
		desc:  "Stammdaten, Bankverbindung, Steuer, SV",
		years: 6, trigger: storage.TriggerExit, mandatory: true, sort: 30,
		children: []child{
			{"03.01", "Personalstammdaten", 6},
			{"03.02", "Bankverbindung", 6},
			{"03.03", "Steuerliche Unterlagen", 6},
			{"03.04", "Sozialversicherung", 30},
		},
	},
	{
		code: "04", name: "Qualifikation & Entwicklung",
		desc:  "Zeugnisse, Zertifikate, Fortbildungen",
		years: 10, trigger: storage.TriggerExit, sort: 40,
		children: []child{
			{"04.01", "Schul-/Ausbildungszeugnisse", 10},
			{"04.02", "Fortbildungsnachweise", 10},
			{"04.03", "Zertifikate", 10},
			{"04.04", "Führerscheine & Fahrerlaubnisse", 10},
		},
	},
	{
		code: "05", name: "Vergütung",
		desc:  "Gehaltsabrechnungen, Lohnsteuer, Sozialversicherung, FiBu",
		years: 10, trigger: storage.TriggerDocumentDate, mandatory: true, sort: 50,
		children: []child{
			{"05.01", "Gehaltsabrechnungen", 10},
			{"05.02", "Lohnsteuer & Finanzamt", 10},
			{"05.03", "Sozialversicherung & Meldewesen", 10},
			{"05.04", "Finanzbuchhaltung", 10},
			{"05.05", "Altersvorsorge & ZVK", 10},
		},
	},
	{
		code: "06", name: "Arbeitszeit & Urlaub",
		desc:  "Arbeitszeitnachweise, Urlaubsanträge, Fehlzeiten",
		years: 3, trigger: storage.TriggerDocumentDate, sort: 60,
		children: []child{
			{"06.01", "Arbeitszeitnachweise", 3},
			{"06.02", "Urlaubsanträge", 3},
			{"06.03", "Fehlzeiten & Kurzarbeit", 3},
			{"06.04", "Gleitzeitkonten", 3},
		},
	},
	{
		code: "07", name: "Gesundheit & Arbeitsschutz",
		desc:  "AU-Bescheinigungen, Arbeitsmedizin, BEM",
		years: 3, trigger: storage.TriggerDocumentDate, sort: 70,
		children: []child{
			{"07.01", "Krankmeldungen", 3},
			{"07.02", "AU-Bescheinigungen", 3},
			{"07.03", "Arbeitsmedizinische Vorsorge", 10},
			{"07.04", "BEM-Unterlagen", 3},
			{"07.05", "Unfallmeldungen", 30},
		},
	},
	{
		code: "08", name: "Beurteilung & Feedback",
		desc:  "Beurteilungen, Zielvereinbarungen, Mitarbeitergespräche",
		years: 5, trigger: storage.TriggerExit, sort: 80,
		children: []child{
			{"08.01", "Leistungsbeurteilungen", 5},
			{"08.02", "Zielvereinbarungen", 5},
			{"08.03", "Mitarbeitergespräche", 5},
			{"08.04", "Feedback", 5},
		},
	},
	{
		code: "09", name: "Disziplinarisches",
		desc:  "Abmahnungen, Ermahnungen, Verwarnungen",
		years: 3, trigger: storage.TriggerDocumentDate, sort: 90,
		children: []child{
			{"09.01", "Abmahnungen", 3},
			{"09.02", "Ermahnungen", 2},
			{"09.03", "Verwarnungen", 2},
		},
	},
	{
		code: "10", name: "Beendigung",
		desc:  "Kündigung, Aufhebungsvertrag, Zeugnis",
		years: 10, trigger: storage.TriggerExit, sort: 100,
		children: []child{
			{"10.01", "Kündigung", 10},
			{"10.02", "Aufhebungsvertrag", 10},
			{"10.03", "Arbeitszeugnis", 10},
			{"10.04", "Abschlussdokumente", 10},
		},
	},
	{
		code: "99", name: "Sonstiges",
		desc:  "Nicht zugeordnete Dokumente",
		years: 10, trigger: storage.TriggerExit, sort: 999,
	},
}

// DefaultCategories flattens the plan into category rows; children inherit
// the parent's trigger.
func DefaultCategories() []storage.FileCategory {
	var out []storage.FileCategory
	for _, n := range defaultPlan {
		out = append(out, storage.FileCategory{
			Code:             n.code,
			Name:             n.name,
			Description:      n.desc,
			RetentionTrigger: n.trigger,
			RetentionYears:   n.years,
			Mandatory:        n.mandatory,
			SortOrder:        n.sort,
		})
		for i, c := range n.children {
			out = append(out, storage.FileCategory{
				Code:             c.code,
				ParentCode:       n.code,
				Name:             c.name,
				RetentionTrigger: n.trigger,
				RetentionYears:   c.years,
				SortOrder:        n.sort + i + 1,
			})
		}
	}
	return out
}

// DefaultRules maps common payroll and personnel document names onto the
// plan. Patterns follow the document titles the payroll export produces.
func DefaultRules() []storage.MatchingRule {
	return []storage.MatchingRule{
		{Name: "Gehaltsabrechnung", Strategy: match.StrategyAny, Pattern: "gehaltsabrechnung entgeltabrechnung lohnabrechnung", CategoryCode: "05.01", Tag: "vergütung", Priority: 10, Active: true},
		{Name: "Lohnsteuerbescheinigung", Strategy: match.StrategyExact, Pattern: "lohnsteuerbescheinigung", CategoryCode: "05.02", Tag: "lohnsteuer", Priority: 11, Active: true},
		{Name: "ELStAM-Protokoll", Strategy: match.StrategyRegex, Pattern: `elstam.*(meldeprotokoll|protokoll)`, CategoryCode: "05.02", Tag: "lohnsteuer", Priority: 12, Active: true},
		{Name: "Beitragsnachweis", Strategy: match.StrategyExact, Pattern: "beitragsnachweis", CategoryCode: "05.03", Tag: "sozialversicherung", Priority: 13, Active: true},
		{Name: "SV-Meldung", Strategy: match.StrategyRegex, Pattern: `sv[- ]meldung|meldebescheinigung`, CategoryCode: "05.03", Tag: "sozialversicherung", Priority: 14, Active: true},
		{Name: "Fibu-Journal", Strategy: match.StrategyRegex, Pattern: `fibu[- ](buchungs)?journal`, CategoryCode: "05.04", Tag: "fibu", Priority: 15, Active: true},
		{Name: "Arbeitsvertrag", Strategy: match.StrategyAll, Pattern: "arbeitsvertrag", CategoryCode: "02.01", Tag: "vertrag", Priority: 20, Active: true},
		{Name: "AU-Bescheinigung", Strategy: match.StrategyAny, Pattern: "arbeitsunfähigkeitsbescheinigung krankmeldung au-bescheinigung", CategoryCode: "07.02", Tag: "krankheit", Priority: 30, Active: true},
		{Name: "Urlaubsantrag", Strategy: match.StrategyExact, Pattern: "urlaubsantrag", CategoryCode: "06.02", Tag: "urlaub", Priority: 31, Active: true},
		{Name: "Stundenzettel", Strategy: match.StrategyAny, Pattern: "stundenzettel arbeitszeitnachweis zeiterfassung", CategoryCode: "06.01", Tag: "arbeitszeit", Priority: 32, Active: true},
		{Name: "Arbeitszeugnis", Strategy: match.StrategyExact, Pattern: "arbeitszeugnis", CategoryCode: "10.03", Tag: "zeugnis", Priority: 40, Active: true},
		{Name: "Kündigung", Strategy: match.StrategyFuzzy, Pattern: "kündigung", CategoryCode: "10.01", Tag: "beendigung", Priority: 41, Active: true},
	}
}

// Seed writes the default plan and rules into the store. Categories are
// upserts; rules are only inserted when the store has none, so tuned rule
// sets survive a re-run.
func Seed(store *storage.Store) (categories, rules int, err error) {
	for _, c := range DefaultCategories() {
		if err := store.UpsertCategory(c); err != nil {
			return categories, rules, fmt.Errorf("seeding category %s: %w", c.Code, err)
		}
		categories++
	}

	existing, err := store.ListActiveRules()
	if err != nil {
		return categories, rules, fmt.Errorf("checking existing rules: %w", err)
	}
	if len(existing) > 0 {
		return categories, 0, nil
	}

	for _, r := range DefaultRules() {
		if _, err := store.InsertRule(r); err != nil {
			return categories, rules, fmt.Errorf("seeding rule %s: %w", r.Name, err)
		}
		rules++
	}
	return categories, rules, nil
}
