package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/config"
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/dto"
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/model"
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/repository"
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/scan"
	"github.com/SpeekeR99/TSP-Kimlova-Savel-Slechta-Vdoviak-Zappe/internal/sheet"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpumodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// EvaluationService runs the scan-time pipeline: page grouping by fiducial
// and pre-filled student-ID bubbles, per-student region location and bubble
// classification, shuffle inversion and scoring.
type EvaluationService interface {
	Evaluate(pdfPath string) (*dto.EvaluationResponse, error)
}

type evaluationService struct {
	testRepo repository.TestRepository
	cfg      *config.Config
}

func NewEvaluationService(testRepo repository.TestRepository, cfg *config.Config) EvaluationService {
	return &evaluationService{testRepo: testRepo, cfg: cfg}
}

// batchLayout is the grid geometry derived once per request from the layout
// config and the test's question count. Read-only for all workers.
type batchLayout struct {
	idRows, idCols   int
	ansRows, ansCols int
	rectsInPage      []int
	numPages         int
	lastRectQ        int
}

func (l batchLayout) maxCells() int { return l.ansRows * l.ansCols }

func (s *evaluationService) layoutFor(numQuestions int) batchLayout {
	grid := &s.cfg.Sheet
	pageW, pageH := sheet.A4Size()
	maxPerPage := sheet.MaxRectsPerPage(grid, pageW, pageH)
	totalRects := sheet.NumRectangles(numQuestions, grid.AnswerRect.Grid.Rows)
	numPages := sheet.NumPages(totalRects, maxPerPage)

	return batchLayout{
		idRows:      grid.StudentIDRect.Grid.Rows,
		idCols:      grid.StudentIDRect.Grid.Cols,
		ansRows:     grid.AnswerRect.Grid.Rows,
		ansCols:     grid.AnswerRect.Grid.Cols,
		rectsInPage: sheet.RectsPerPage(totalRects, numPages, maxPerPage),
		numPages:    numPages,
		lastRectQ:   sheet.LastRectQuestionCount(numQuestions, grid.AnswerRect.Grid.Rows),
	}
}

func (s *evaluationService) Evaluate(pdfPath string) (*dto.EvaluationResponse, error) {
	pages, err := scan.LoadPDF(pdfPath)
	if err != nil {
		return nil, err
	}
	defer scan.ReleasePages(pages)

	testID, err := scan.FindTestID(pages)
	if err != nil {
		return nil, err
	}
	log.Info().Str("test_id", testID).Int("pages", len(pages)).Msg("Evaluating scanned batch")

	test, err := s.testRepo.FindByTestID(testID)
	if err != nil {
		return nil, fmt.Errorf("looking up test %s: %w", testID, err)
	}

	layout := s.layoutFor(test.NumOfQuestions)
	degradedBefore := scan.DegradedDetections()
	groups := s.groupPages(pages, layout)

	outcomes := make(chan studentOutcome, len(groups))
	var wg sync.WaitGroup
	for i, g := range groups {
		wg.Add(1)
		go func(idx int, group studentGroup) {
			defer wg.Done()
			entry, logLine := s.evaluateStudent(pdfPath, group, test, layout, idx)
			outcomes <- studentOutcome{index: idx, entry: entry, log: logLine}
		}(i, g)
	}
	wg.Wait()
	close(outcomes)

	// Re-associate results by original index so the output order is
	// deterministic regardless of worker completion order.
	ordered := make([]studentOutcome, len(groups))
	for o := range outcomes {
		ordered[o.index] = o
	}

	resp := &dto.EvaluationResponse{Result: make([]any, 0, len(groups))}
	logs := make([]string, 0, len(groups))
	for _, o := range ordered {
		resp.Result = append(resp.Result, o.entry)
		if o.log != "" {
			logs = append(logs, o.log)
		}
	}
	resp.Log = strings.Join(logs, "\n")

	if degraded := scan.DegradedDetections() - degradedBefore; degraded > 0 {
		log.Warn().Int64("grids", degraded).Str("test_id", testID).
			Msg("Some bubble grids were classified with padded contours")
	}
	return resp, nil
}

type pageRef struct {
	pdfIndex int
	pageNum  int
}

type studentGroup struct {
	studentID string
	pages     []pageRef
}

type pageGroupResult struct {
	originalIndex int
	studentID     string
	pageNum       int
	err           error
}

type studentOutcome struct {
	index int
	entry any
	log   string
}

// groupPages attributes every physical page to a logical test-taker. Pages
// are processed in parallel; each decodes its own fiducial and reads its own
// pre-filled ID grid. Pages whose fiducial or grids cannot be read are
// dropped here rather than guessed at.
func (s *evaluationService) groupPages(pages []gocv.Mat, layout batchLayout) []studentGroup {
	resultCh := make(chan pageGroupResult, len(pages))
	var wg sync.WaitGroup
	for i := range pages {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res := s.groupPage(&pages[idx], layout)
			res.originalIndex = idx
			resultCh <- res
		}(i)
	}
	wg.Wait()
	close(resultCh)

	results := make([]pageGroupResult, 0, len(pages))
	for res := range resultCh {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].originalIndex < results[j].originalIndex })

	byStudent := make(map[string]*studentGroup)
	var order []string
	for _, res := range results {
		if res.err != nil {
			log.Warn().Err(res.err).Int("pdf_page", res.originalIndex).Msg("Dropping unattributable page")
			continue
		}
		g, ok := byStudent[res.studentID]
		if !ok {
			g = &studentGroup{studentID: res.studentID}
			byStudent[res.studentID] = g
			order = append(order, res.studentID)
		}
		g.pages = append(g.pages, pageRef{pdfIndex: res.originalIndex, pageNum: res.pageNum})
	}

	groups := make([]studentGroup, 0, len(order))
	for _, id := range order {
		g := byStudent[id]
		// Sheet order comes from the decoded page numbers, not from where
		// the pages sat in the physical scan.
		sort.Slice(g.pages, func(i, j int) bool { return g.pages[i].pageNum < g.pages[j].pageNum })
		groups = append(groups, *g)
	}
	return groups
}

func (s *evaluationService) groupPage(page *gocv.Mat, layout batchLayout) (res pageGroupResult) {
	defer func() {
		if r := recover(); r != nil {
			res = pageGroupResult{err: fmt.Errorf("page grouping panicked: %v", r)}
		}
	}()

	scan.Deskew(page)

	id, err := scan.DecodePageID(*page)
	if err != nil {
		return pageGroupResult{err: err}
	}
	if id.Page < 0 || id.Page >= len(layout.rectsInPage) {
		return pageGroupResult{err: fmt.Errorf("fiducial page %d outside sheet with %d pages", id.Page, len(layout.rectsInPage))}
	}

	// The ID grid is printed and pre-filled on every page, so each page can
	// be attributed on its own. Answer rectangles are located but not
	// classified in this phase, hence full crops throughout.
	specs := make([]scan.RegionSpec, 0, layout.rectsInPage[id.Page]+1)
	specs = append(specs, scan.RegionSpec{Cells: layout.idRows * layout.idCols, FullCrop: true})
	for i := 0; i < layout.rectsInPage[id.Page]; i++ {
		specs = append(specs, scan.RegionSpec{Cells: layout.maxCells(), FullCrop: true})
	}

	regions, err := scan.LocateRegions(*page, specs, layout.maxCells())
	if err != nil {
		return pageGroupResult{err: err}
	}
	defer scan.ReleasePages(regions)

	matrix, err := scan.ClassifyGrid(regions[0], layout.idCols, layout.idRows*layout.idCols)
	if err != nil {
		return pageGroupResult{err: err}
	}

	return pageGroupResult{studentID: scan.DigitString(matrix), pageNum: id.Page}
}

// evaluateStudent runs the full pipeline for one page group. Every failure,
// panics included, becomes a per-student error entry so siblings keep going.
func (s *evaluationService) evaluateStudent(batchPath string, group studentGroup, test *model.Test, layout batchLayout, idx int) (entry any, logLine string) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("ERROR: Evaluation failed on page %d! %v", idx+1, r)
			log.Error().Str("student_id", group.studentID).Interface("panic", r).Msg("Student evaluation panicked")
			entry, logLine = dto.EvaluationError{Error: msg, Result: []dto.QuestionResult{}}, msg
		}
	}()

	scanned, err := s.readStudentAnswers(batchPath, group, layout)
	if err != nil {
		msg := fmt.Sprintf("ERROR: Evaluation failed on page %d! %v", idx+1, err)
		log.Error().Err(err).Str("student_id", group.studentID).Msg("Student evaluation failed")
		return dto.EvaluationError{Error: msg, Result: []dto.QuestionResult{}}, msg
	}

	student, ok := findStudent(test.Students, group.studentID)
	if !ok {
		msg := fmt.Sprintf("ERROR: Evaluation failed on page %d! Student with %s ID not found in the database! (ID detection failed)", idx+1, group.studentID)
		log.Error().Str("student_id", group.studentID).Msg("Detected student ID matches no student")
		return dto.EvaluationError{Error: msg, Result: []dto.QuestionResult{}}, msg
	}

	logLine = scanOrderLog(group.studentID, scanned)

	canonical := Unshuffle(scanned, student.Shuffle)
	results, totals := Score(canonical, test.Questions, test.GCMode, s.cfg.Sheet.GCMultiplier)

	return dto.StudentResult{
		Jmeno:      student.Name,
		Prijmeni:   student.Surname,
		OsCislo:    student.StudentNumber,
		Login:      student.Username,
		Email:      student.Email,
		Result:     results,
		Body:       totals.Body,
		BodyCelkem: totals.BodyCelkem,
		BodyRel:    totals.BodyRel,
	}, logLine
}

// readStudentAnswers assembles the group's pages into a temporary PDF,
// rasterizes it and classifies every answer grid, returning the combined
// scan-order answer matrix. The temp PDF is removed on all exit paths.
func (s *evaluationService) readStudentAnswers(batchPath string, group studentGroup, layout batchLayout) ([][]bool, error) {
	// Pages arrive sorted by decoded page number. A gap means an earlier
	// sheet page was dropped at grouping time; reading the survivors
	// contiguously would shift every following question onto the wrong row,
	// so the student fails instead of being misgraded.
	for i, ref := range group.pages {
		if ref.pageNum != i {
			return nil, fmt.Errorf("sheet page %d missing from the scanned batch", i)
		}
	}

	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("eval_%s.pdf", uuid.NewString()))
	// CollectFile can leave a partial output behind when it fails midway, so
	// cleanup is registered before the call.
	defer os.Remove(tmpPath)

	selected := make([]string, 0, len(group.pages))
	for _, ref := range group.pages {
		selected = append(selected, strconv.Itoa(ref.pdfIndex+1))
	}
	if err := api.CollectFile(batchPath, tmpPath, selected, pdfcpumodel.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("assembling per-student pdf: %w", err)
	}

	pages, err := scan.LoadPDF(tmpPath)
	if err != nil {
		return nil, err
	}
	defer scan.ReleasePages(pages)

	var scanned [][]bool
	for i := range pages {
		if i >= len(group.pages) {
			break
		}
		scan.Deskew(&pages[i])
		rows, err := s.readPageAnswers(pages[i], group.pages[i].pageNum, layout)
		if err != nil {
			return nil, err
		}
		scanned = append(scanned, rows...)
	}
	return scanned, nil
}

func (s *evaluationService) readPageAnswers(page gocv.Mat, pageNum int, layout batchLayout) ([][]bool, error) {
	k := layout.rectsInPage[pageNum]

	specs := make([]scan.RegionSpec, 0, k+1)
	specs = append(specs, scan.RegionSpec{Cells: layout.idRows * layout.idCols, FullCrop: true})
	for i := 0; i < k; i++ {
		cells := layout.maxCells()
		if pageNum == layout.numPages-1 && i == k-1 && layout.lastRectQ != 0 {
			cells = layout.lastRectQ * layout.ansCols
		}
		specs = append(specs, scan.RegionSpec{Cells: cells})
	}

	regions, err := scan.LocateRegions(page, specs, layout.maxCells())
	if err != nil {
		return nil, err
	}
	defer scan.ReleasePages(regions)

	var rows [][]bool
	for i, region := range regions[1:] {
		matrix, err := scan.ClassifyGrid(region, layout.ansCols, specs[i+1].Cells)
		if err != nil {
			return nil, err
		}
		rows = append(rows, matrix...)
	}
	return rows, nil
}

func findStudent(students []model.Student, detectedID string) (*model.Student, bool) {
	id, err := strconv.Atoi(detectedID)
	if err != nil {
		return nil, false
	}
	for i := range students {
		if students[i].ID == id {
			return &students[i], true
		}
	}
	return nil, false
}

// scanOrderLog lists the marked option letters per question in sheet order,
// before unshuffling, for human audit of the raw detection.
func scanOrderLog(studentID string, scanned [][]bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Student %s:", studentID)
	for i, row := range scanned {
		letters := make([]byte, 0, len(row))
		for j, marked := range row {
			if marked {
				letters = append(letters, byte('A'+j))
			}
		}
		fmt.Fprintf(&b, " %d=%s", i+1, letters)
	}
	return b.String()
}
