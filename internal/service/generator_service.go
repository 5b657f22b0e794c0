package service

import (
	"archive/zip"
	"bytes"
	"fmt"
	"math/rand"
	"regexp"
	"time"

	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/config"
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/dto"
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/model"
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/repository"
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/sheet"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// GeneratorService produces the printable artifacts for one exam run: a PDF
// of per-student bubble sheets, a PDF of per-student question papers, both
// zipped, plus the persisted test record the evaluator will later need.
type GeneratorService interface {
	GeneratePrintData(req *dto.GenerateRequest) ([]byte, error)
	GenerateGCPrintData(req *dto.GCGenerateRequest) ([]byte, error)
}

type generatorService struct {
	testRepo repository.TestRepository
	cfg      *config.Config
}

func NewGeneratorService(testRepo repository.TestRepository, cfg *config.Config) GeneratorService {
	return &generatorService{testRepo: testRepo, cfg: cfg}
}

func (s *generatorService) GeneratePrintData(req *dto.GenerateRequest) ([]byte, error) {
	questions := make([]model.Question, 0, len(req.Questions))
	if err := copier.Copy(&questions, &req.Questions); err != nil {
		return nil, fmt.Errorf("converting question export: %w", err)
	}
	return s.generate(questions, req.Students, req.Date, false)
}

func (s *generatorService) GenerateGCPrintData(req *dto.GCGenerateRequest) ([]byte, error) {
	return s.generate(convertGCQuestions(req.Questions), req.Students, req.Date, true)
}

// convertGCQuestions maps a Google Classroom export onto the Moodle-shaped
// question model. Classroom carries no per-option fractions, so credit is
// spread uniformly: +100/correct over the correct options, -100/wrong over
// the rest.
func convertGCQuestions(in []dto.GCQuestion) []model.Question {
	questions := make([]model.Question, 0, len(in))
	for _, q := range in {
		var correct, wrong int
		for _, a := range q.Answers {
			if a.IsCorrect {
				correct++
			} else {
				wrong++
			}
		}

		out := model.Question{Text: q.Text, DefaultGrade: q.Points}
		for _, a := range q.Answers {
			opt := model.AnswerOption{Text: a.Value, IsCorrect: a.IsCorrect}
			if a.IsCorrect {
				opt.Fraction = 100 / float64(correct)
			} else if wrong > 0 {
				opt.Fraction = -100 / float64(wrong)
			}
			out.Answers = append(out.Answers, opt)
		}
		questions = append(questions, out)
	}
	return questions
}

func (s *generatorService) generate(questions []model.Question, roster []dto.RosterStudent, date string, gcMode bool) ([]byte, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("generation request carries no questions")
	}

	testID := fmt.Sprintf("%x", uuid.New())
	students := buildStudents(roster, questions)

	test := &model.Test{
		TestID:         testID,
		NumOfQuestions: len(questions),
		GCMode:         gcMode,
		Students:       students,
		Questions:      questions,
	}
	if err := s.testRepo.Create(test); err != nil {
		return nil, fmt.Errorf("persisting test %s: %w", testID, err)
	}
	log.Info().Str("test_id", testID).Int("students", len(students)).Int("questions", len(questions)).Msg("Generating print data")

	printedDate := formatDate(date)

	sheets, err := s.renderBubbleSheets(testID, students, len(questions), printedDate)
	if err != nil {
		return nil, err
	}
	papers, err := s.renderQuestionPapers(students, questions, printedDate)
	if err != nil {
		return nil, err
	}

	return zipArtifacts(sheets, papers)
}

// buildStudents assigns each roster entry its bubble-sheet ID (the roster
// index, printed zero-padded into the ID grid) and an independent random
// shuffle of questions and of every question's options.
func buildStudents(roster []dto.RosterStudent, questions []model.Question) []model.Student {
	students := make([]model.Student, 0, len(roster))
	for i, r := range roster {
		students = append(students, model.Student{
			ID:            i,
			Name:          r.Jmeno,
			Surname:       r.Prijmeni,
			StudentNumber: r.OsCislo,
			Username:      r.Login,
			Email:         r.Email,
			Shuffle:       randomShuffle(questions),
		})
	}
	return students
}

// randomShuffle draws one student's sheet permutation: printed row e holds
// canonical question entries[e].Question, and printed option slot s of that
// row holds canonical option entries[e].Answers[s].
func randomShuffle(questions []model.Question) []model.ShuffleEntry {
	qperm := rand.Perm(len(questions))
	entries := make([]model.ShuffleEntry, len(questions))
	for e := range entries {
		entries[e] = model.ShuffleEntry{
			Question: qperm[e],
			Answers:  rand.Perm(len(questions[qperm[e]].Answers)),
		}
	}
	return entries
}

// renderBubbleSheets paints every student's pages with the layout engine and
// packs the PNGs into one landscape A4 PDF.
func (s *generatorService) renderBubbleSheets(testID string, students []model.Student, numQuestions int, date string) ([]byte, error) {
	layout := &s.cfg.Sheet

	pageW, pageH := sheet.A4Size()
	maxPerPage := sheet.MaxRectsPerPage(layout, pageW, pageH)
	totalRects := sheet.NumRectangles(numQuestions, layout.AnswerRect.Grid.Rows)
	numPages := sheet.NumPages(totalRects, maxPerPage)
	rectsPerPage := sheet.RectsPerPage(totalRects, numPages, maxPerPage)
	lastRectQ := sheet.LastRectQuestionCount(numQuestions, layout.AnswerRect.Grid.Rows)

	pdf := gofpdf.New("L", "mm", "A4", "")
	opts := gofpdf.ImageOptions{ImageType: "PNG"}

	for si := range students {
		st := &students[si]
		counter := 1
		for page := 0; page < numPages; page++ {
			canvas, next, err := sheet.DrawPage(layout, sheet.PageParams{
				TestID:        testID,
				StudentID:     fmt.Sprintf("%04d", st.ID),
				StudentName:   fmt.Sprintf("%s %s", st.Name, st.Surname),
				Date:          date,
				Page:          page,
				NumPages:      numPages,
				RectsOnPage:   rectsPerPage[page],
				LastRectQ:     lastRectQ,
				QuestionStart: counter,
			})
			if err != nil {
				return nil, fmt.Errorf("drawing sheet for student %d page %d: %w", st.ID, page, err)
			}
			counter = next

			buf, err := gocv.IMEncode(".png", canvas)
			canvas.Close()
			if err != nil {
				return nil, fmt.Errorf("encoding sheet for student %d page %d: %w", st.ID, page, err)
			}

			name := fmt.Sprintf("sheet_%d_%d", st.ID, page)
			pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(buf.GetBytes()))
			buf.Close()

			pdf.AddPage()
			pdf.ImageOptions(name, 0, 0, 297, 210, false, opts, 0, "")
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("writing bubble sheet pdf: %w", err)
	}
	return out.Bytes(), nil
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// renderQuestionPapers typesets each student's questions in their shuffled
// sheet order, option letters matching the bubble-sheet columns.
func (s *generatorService) renderQuestionPapers(students []model.Student, questions []model.Question, date string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("cp1250")

	for si := range students {
		st := &students[si]

		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 8, tr(s.cfg.Sheet.Header.Title), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s %s", st.Name, st.Surname)), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(date), "", 1, "L", false, 0, "")
		pdf.Ln(4)

		for e, entry := range st.Shuffle {
			q := questions[entry.Question]

			pdf.SetFont("Helvetica", "B", 11)
			pdf.MultiCell(0, 6, tr(fmt.Sprintf("%d. %s", e+1, htmlTag.ReplaceAllString(q.Text, ""))), "", "L", false)

			pdf.SetFont("Helvetica", "", 11)
			for slot, j := range entry.Answers {
				letter := string(rune('A' + slot))
				pdf.MultiCell(0, 5, tr(fmt.Sprintf("   %s) %s", letter, htmlTag.ReplaceAllString(q.Answers[j].Text, ""))), "", "L", false)
			}
			pdf.Ln(2)
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("writing question paper pdf: %w", err)
	}
	return out.Bytes(), nil
}

// formatDate turns an ISO 8601 timestamp into the printed "DD. MM. YYYY"
// form; anything unparsable is printed verbatim.
func formatDate(date string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format("02. 01. 2006")
		}
	}
	return date
}

func zipArtifacts(sheets, papers []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range []struct {
		name string
		data []byte
	}{
		{"bubble_sheets.pdf", sheets},
		{"question_papers.pdf", papers},
	} {
		w, err := zw.Create(f.name)
		if err != nil {
			return nil, fmt.Errorf("archiving %s: %w", f.name, err)
		}
		if _, err := w.Write(f.data); err != nil {
			return nil, fmt.Errorf("archiving %s: %w", f.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}
	return buf.Bytes(), nil
}
