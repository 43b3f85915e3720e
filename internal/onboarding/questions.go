package onboarding

import (
	"fmt"

	"github.com/hitoshi/plastudo/internal/model"
)

// アンケート種別。
const (
	KindTutor   = "tutor"
	KindStudent = "student"
)

// Option は質問の選択肢を表す。
type Option struct {
	Value string
	Label string
}

// Question はアンケートの質問を表す。
type Question struct {
	ID      int
	Title   string
	Options []Option
}

// Questionnaire は種別ごとの質問セットを表す。起動後は変更しない。
type Questionnaire struct {
	Kind      string
	Questions []Question
}

// areaOptions は講師・生徒アンケート共通の分野選択肢。
var areaOptions = []Option{
	{Value: "matematica", Label: "A) Matemática e Ciências Exatas"},
	{Value: "linguas", Label: "B) Línguas e Literatura"},
	{Value: "ciencias", Label: "C) Ciências Naturais e Biologia"},
	{Value: "humanas", Label: "D) Ciências Humanas e Sociais"},
}

var questionnaires = map[string]*Questionnaire{
	KindTutor: {
		Kind: KindTutor,
		Questions: []Question{
			{ID: 1, Title: "Qual é a sua área principal de expertise?", Options: areaOptions},
		},
	},
	KindStudent: {
		Kind: KindStudent,
		Questions: []Question{
			{ID: 1, Title: "Em que área precisa de ajuda?", Options: areaOptions},
		},
	},
}

// Lookup は種別に対応するアンケートを返す。
// 未知の種別の場合はUNKNOWN_QUESTIONNAIREエラーを返す。
func Lookup(kind string) (*Questionnaire, error) {
	q, ok := questionnaires[kind]
	if !ok {
		return nil, model.NewUnknownQuestionnaireError(kind)
	}
	return q, nil
}

// AnswerKey は質問IDに対応する回答キー（question_<id>_answer）を返す。
func AnswerKey(questionID int) string {
	return fmt.Sprintf("question_%d_answer", questionID)
}

// Question は指定IDの質問を返す。
func (q *Questionnaire) Question(id int) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// Validate は回答が質問の選択肢に含まれるかを検証する。
func (q *Questionnaire) Validate(questionID int, value string) error {
	question, ok := q.Question(questionID)
	if !ok {
		return model.NewInvalidAnswerError(questionID, value)
	}
	for _, opt := range question.Options {
		if opt.Value == value {
			return nil
		}
	}
	return model.NewInvalidAnswerError(questionID, value)
}

// IsComplete は全ての質問に有効な回答があるかを返す。
func (q *Questionnaire) IsComplete(answers map[string]string) bool {
	for _, question := range q.Questions {
		if q.Validate(question.ID, answers[AnswerKey(question.ID)]) != nil {
			return false
		}
	}
	return true
}
