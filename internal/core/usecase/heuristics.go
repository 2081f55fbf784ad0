package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/asn-portal/internal/core/domain"
)

var fieldMatchers = compileFieldMatchers()

func compileFieldMatchers() map[domain.DocumentType][]*regexp.Regexp {
	out := make(map[domain.DocumentType][]*regexp.Regexp)
	for _, profile := range domain.Profiles() {
		matchers := make([]*regexp.Regexp, 0, len(profile.Fields))
		for _, field := range profile.Fields {
			matchers = append(matchers, regexp.MustCompile(field.Pattern))
		}
		out[profile.Type] = matchers
	}
	return out
}

var (
	nikPattern       = regexp.MustCompile(`\b(\d{16})\b`)
	namePattern      = regexp.MustCompile(`(?im)^\s*nama(?:\s+lengkap)?\s*[:\-]?\s*([A-Za-z][A-Za-z .,'\-]*[A-Za-z.])\s*$`)
	birthDatePattern = regexp.MustCompile(`(?i)lahir[^0-9\n]*?(\d{1,2})\s*[-/.]\s*(\d{1,2})\s*[-/.]\s*(\d{4})`)
	studyPattern     = regexp.MustCompile(`(?im)^\s*(?:program\s+studi|jurusan)\s*[:\-]?\s*(.+?)\s*$`)
	gpaPattern       = regexp.MustCompile(`(?i)\bIPK\b\s*[:\-]?\s*(\d[.,]\d{1,2})`)
	genderPattern    = regexp.MustCompile(`(?i)\b(LAKI-LAKI|PEREMPUAN)\b`)
	specimenPattern  = regexp.MustCompile(`(?i)\b(SPECIMEN|SPESIMEN|CONTOH|SAMPLE|VOID)\b`)
)

// AnalyzeText measures how many of the profile's expected fields the OCR
// text carries and extracts the values later rules compare against.
func AnalyzeText(text string, profile domain.DocumentProfile) domain.AnalysisResult {
	analysis := domain.Analysis{
		FieldsFound:   []string{},
		FieldsMissing: []string{},
		Fields:        map[string]string{},
	}
	if strings.TrimSpace(text) == "" {
		for _, field := range profile.Fields {
			analysis.FieldsMissing = append(analysis.FieldsMissing, field.Key)
		}
		return domain.AnalysisResult{Success: true, Analysis: analysis}
	}

	matchers := fieldMatchers[profile.Type]
	for i, field := range profile.Fields {
		if i < len(matchers) && matchers[i].MatchString(text) {
			analysis.FieldsFound = append(analysis.FieldsFound, field.Key)
			continue
		}
		analysis.FieldsMissing = append(analysis.FieldsMissing, field.Key)
	}
	if len(profile.Fields) > 0 {
		analysis.Completeness = round(float64(len(analysis.FieldsFound))/float64(len(profile.Fields)), 4)
	}

	extractFields(text, analysis.Fields)
	return domain.AnalysisResult{Success: true, Analysis: analysis}
}

func extractFields(text string, fields map[string]string) {
	if m := nikPattern.FindStringSubmatch(text); m != nil {
		fields["nik"] = m[1]
	}
	if m := namePattern.FindStringSubmatch(text); m != nil {
		fields["nama"] = strings.TrimSpace(m[1])
	}
	if m := birthDatePattern.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if validDate(year, month, day) {
			fields["birthDate"] = fmt.Sprintf("%04d-%02d-%02d", year, month, day)
		}
	}
	if m := studyPattern.FindStringSubmatch(text); m != nil {
		fields["programStudi"] = strings.TrimSpace(m[1])
	}
	if m := gpaPattern.FindStringSubmatch(text); m != nil {
		fields["ipk"] = strings.ReplaceAll(m[1], ",", ".")
	}
	if m := genderPattern.FindStringSubmatch(text); m != nil {
		fields["jenisKelamin"] = strings.ToUpper(m[1])
	}
}

func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1900 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day && t.Month() == time.Month(month)
}

// FraudPolicy configures indicator thresholds.
type FraudPolicy struct {
	SuspicionThreshold float64
	MismatchConfidence float64
	MinWidth           int
	MinHeight          int
}

func DefaultFraudPolicy() FraudPolicy {
	return FraudPolicy{
		SuspicionThreshold: 0.5,
		MismatchConfidence: 0.5,
		MinWidth:           600,
		MinHeight:          380,
	}
}

type FraudInput struct {
	DocumentType domain.DocumentType
	OCR          domain.OcrResult
	Analysis     domain.AnalysisResult
	Detection    domain.ContentDetection
	Image        *domain.ImageInfo
}

const (
	IndicatorSpecimen         = "specimen_marker"
	IndicatorInvalidNIK       = "invalid_nik"
	IndicatorNIKBirthMismatch = "nik_birthdate_mismatch"
	IndicatorTypeMismatch     = "type_mismatch"
	IndicatorLowResolution    = "low_resolution"
	IndicatorUnreadableImage  = "unreadable_image"
)

// DetectFraud scores heuristic fraud and quality indicators. Without OCR
// text there is no evidence either way, so nothing is flagged.
func DetectFraud(policy FraudPolicy, in FraudInput) domain.FraudResult {
	result := domain.FraudResult{
		Success:         true,
		FraudIndicators: map[string]domain.FraudIndicator{},
	}
	text := in.OCR.Text
	if strings.TrimSpace(text) == "" {
		return result
	}

	add := func(category, detail string, weight float64) {
		result.FraudIndicators[category] = domain.FraudIndicator{Category: category, Detail: detail, Weight: weight}
	}

	if m := specimenPattern.FindString(text); m != "" {
		add(IndicatorSpecimen, fmt.Sprintf("text contains %q marker", strings.ToUpper(m)), 0.6)
	}

	if in.DocumentType == domain.DocumentKTP {
		if nik := in.Analysis.Analysis.Fields["nik"]; nik != "" {
			birth, err := decodeNIK(nik)
			switch {
			case err != nil:
				add(IndicatorInvalidNIK, err.Error(), 0.5)
			case in.Analysis.Analysis.Fields["birthDate"] != "":
				if !nikMatchesBirthDate(birth, in.Analysis.Analysis.Fields["birthDate"]) {
					add(IndicatorNIKBirthMismatch, "birth date differs from the date encoded in NIK", 0.4)
				}
			}
		}
	}

	if in.Detection.Mismatch(in.DocumentType, policy.MismatchConfidence) {
		add(IndicatorTypeMismatch, fmt.Sprintf("content looks like %s, declared %s", *in.Detection.DetectedType, in.DocumentType), 0.5)
	}

	if in.Image != nil {
		switch {
		case !in.Image.Decoded:
			add(IndicatorUnreadableImage, "image could not be decoded", 0.2)
		case tooSmall(*in.Image, policy):
			add(IndicatorLowResolution, fmt.Sprintf("image %dx%d below %dx%d", in.Image.Width, in.Image.Height, policy.MinWidth, policy.MinHeight), 0.2)
		}
	}

	var total float64
	for _, indicator := range result.FraudIndicators {
		total += indicator.Weight
	}
	result.Confidence = round(clamp01(total), 4)
	result.IsSuspicious = len(result.FraudIndicators) > 0 && result.Confidence >= policy.SuspicionThreshold
	return result
}

func tooSmall(info domain.ImageInfo, policy FraudPolicy) bool {
	long, short := info.Width, info.Height
	if short > long {
		long, short = short, long
	}
	return long < policy.MinWidth || short < policy.MinHeight
}

type nikBirth struct {
	day, month, yy int
}

var validProvinceCodes = map[int]bool{
	11: true, 12: true, 13: true, 14: true, 15: true, 16: true, 17: true, 18: true, 19: true,
	21: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	51: true, 52: true, 53: true, 61: true, 62: true, 63: true, 64: true, 65: true,
	71: true, 72: true, 73: true, 74: true, 75: true, 76: true, 81: true, 82: true,
	91: true, 92: true, 93: true, 94: true, 95: true, 96: true, 97: true,
}

// decodeNIK checks the region and birth-date segments of a 16-digit NIK.
// Women have 40 added to the day of birth.
func decodeNIK(nik string) (nikBirth, error) {
	if len(nik) != 16 {
		return nikBirth{}, fmt.Errorf("nik must have 16 digits")
	}
	province, _ := strconv.Atoi(nik[0:2])
	if !validProvinceCodes[province] {
		return nikBirth{}, fmt.Errorf("nik province code %02d does not exist", province)
	}
	day, _ := strconv.Atoi(nik[6:8])
	month, _ := strconv.Atoi(nik[8:10])
	yy, _ := strconv.Atoi(nik[10:12])
	if day > 40 {
		day -= 40
	}
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return nikBirth{}, fmt.Errorf("nik encodes impossible birth date %s", nik[6:12])
	}
	return nikBirth{day: day, month: month, yy: yy}, nil
}

func nikMatchesBirthDate(b nikBirth, isoDate string) bool {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return true
	}
	return t.Day() == b.day && int(t.Month()) == b.month && t.Year()%100 == b.yy
}
