package questions

import (
	"context"

	"github.com/hassanwarsame/quizduel/internal/models"
)

// StaticPool serves the built-in question banks. It backs development and
// test environments where no authored content is loaded.
type StaticPool struct {
	banks map[models.Subject][]models.Question
}

func NewStaticPool() *StaticPool {
	return &StaticPool{banks: seedBanks()}
}

func (p *StaticPool) Sample(_ context.Context, subject models.Subject, n int) ([]models.Question, error) {
	bank, ok := p.banks[subject]
	if !ok {
		return nil, ErrSubjectUnknown
	}
	return sampleFrom(bank, n)
}

func seedBanks() map[models.Subject][]models.Question {
	return map[models.Subject][]models.Question{
		models.SubjectMath: {
			{ID: "m1", Prompt: "5 + 7 = ?", Options: []string{"10", "11", "12", "13"}, Correct: 2, Subject: models.SubjectMath},
			{ID: "m2", Prompt: "15 x 3 = ?", Options: []string{"35", "40", "45", "50"}, Correct: 2, Subject: models.SubjectMath},
			{ID: "m3", Prompt: "Square root of 81?", Options: []string{"7", "8", "9", "6"}, Correct: 2, Subject: models.SubjectMath},
			{ID: "m4", Prompt: "20 / 4 = ?", Options: []string{"5", "4", "6", "10"}, Correct: 0, Subject: models.SubjectMath},
			{ID: "m5", Prompt: "100 - 37 = ?", Options: []string{"53", "63", "73", "67"}, Correct: 1, Subject: models.SubjectMath},
		},
		models.SubjectGeneral: {
			{ID: "g1", Prompt: "Capital of Somalia?", Options: []string{"Hargeisa", "Mogadishu", "Kismayo", "Bosaso"}, Correct: 1, Subject: models.SubjectGeneral},
			{ID: "g2", Prompt: "Number of continents?", Options: []string{"5", "6", "7", "8"}, Correct: 2, Subject: models.SubjectGeneral},
			{ID: "g3", Prompt: "Largest ocean?", Options: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, Correct: 3, Subject: models.SubjectGeneral},
			{ID: "g4", Prompt: "H2O is?", Options: []string{"Salt", "Water", "Air", "Gold"}, Correct: 1, Subject: models.SubjectGeneral},
			{ID: "g5", Prompt: "Fastest land animal?", Options: []string{"Lion", "Cheetah", "Horse", "Leopard"}, Correct: 1, Subject: models.SubjectGeneral},
		},
	}
}
