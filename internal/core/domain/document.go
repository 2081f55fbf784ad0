package domain

import (
	"fmt"
	"sort"
	"strings"
)

type DocumentType string

const (
	DocumentKTP       DocumentType = "ktp"
	DocumentIjazah    DocumentType = "ijazah"
	DocumentTranskrip DocumentType = "transkrip"
	DocumentKK        DocumentType = "kk"
)

// DefaultDocumentType is assumed when an upload omits documentType.
const DefaultDocumentType = DocumentKTP

func ParseDocumentType(raw string) (DocumentType, error) {
	v := DocumentType(strings.ToLower(strings.TrimSpace(raw)))
	if v == "" {
		return DefaultDocumentType, nil
	}
	if _, ok := documentProfiles[v]; !ok {
		return "", WrapError(ErrInvalidInput, "parse document type", fmt.Errorf("unsupported documentType %q", raw))
	}
	return v, nil
}

// ExpectedField is one field a document of a given type should carry.
type ExpectedField struct {
	Key     string
	Label   string
	Pattern string
}

// DocumentProfile describes what OCR output of a document type looks like.
type DocumentProfile struct {
	Type     DocumentType
	Title    string
	Keywords []string
	Fields   []ExpectedField
}

var documentProfiles = map[DocumentType]DocumentProfile{
	DocumentKTP: {
		Type:     DocumentKTP,
		Title:    "Kartu Tanda Penduduk",
		Keywords: []string{"PROVINSI", "NIK", "KEWARGANEGARAAN", "GOL. DARAH", "BERLAKU HINGGA", "RT/RW", "KEL/DESA"},
		Fields: []ExpectedField{
			{Key: "nik", Label: "NIK", Pattern: `(?i)\bNIK\b`},
			{Key: "nama", Label: "Nama", Pattern: `(?i)\bNAMA\b`},
			{Key: "ttl", Label: "Tempat/Tgl Lahir", Pattern: `(?i)TEMPAT\s*/?\s*TGL\.?\s*LAHIR|LAHIR`},
			{Key: "jenis_kelamin", Label: "Jenis Kelamin", Pattern: `(?i)JENIS\s+KELAMIN|LAKI-LAKI|PEREMPUAN`},
			{Key: "alamat", Label: "Alamat", Pattern: `(?i)\bALAMAT\b`},
			{Key: "agama", Label: "Agama", Pattern: `(?i)\bAGAMA\b`},
			{Key: "status_perkawinan", Label: "Status Perkawinan", Pattern: `(?i)STATUS\s+PERKAWINAN|KAWIN`},
			{Key: "pekerjaan", Label: "Pekerjaan", Pattern: `(?i)\bPEKERJAAN\b`},
			{Key: "kewarganegaraan", Label: "Kewarganegaraan", Pattern: `(?i)KEWARGANEGARAAN|\bWNI\b`},
			{Key: "berlaku_hingga", Label: "Berlaku Hingga", Pattern: `(?i)BERLAKU\s+HINGGA|SEUMUR\s+HIDUP`},
		},
	},
	DocumentIjazah: {
		Type:     DocumentIjazah,
		Title:    "Ijazah",
		Keywords: []string{"IJAZAH", "LULUS", "GELAR", "PROGRAM STUDI", "DIBERIKAN KEPADA", "REKTOR", "DEKAN"},
		Fields: []ExpectedField{
			{Key: "nomor_ijazah", Label: "Nomor Ijazah", Pattern: `(?i)(NOMOR|NO\.?)\s*(SERI\s*)?IJAZAH|NOMOR\s+IJAZAH\s+NASIONAL`},
			{Key: "nama", Label: "Nama", Pattern: `(?i)\bNAMA\b|DIBERIKAN\s+KEPADA`},
			{Key: "ttl", Label: "Tempat dan Tanggal Lahir", Pattern: `(?i)TEMPAT\s+(DAN\s+)?TANGGAL\s+LAHIR|LAHIR`},
			{Key: "program_studi", Label: "Program Studi", Pattern: `(?i)PROGRAM\s+STUDI|JURUSAN`},
			{Key: "gelar", Label: "Gelar", Pattern: `(?i)\bGELAR\b|SARJANA|DIPLOMA|MAGISTER`},
			{Key: "tanggal_lulus", Label: "Tanggal Lulus", Pattern: `(?i)\bLULUS\b|YUDISIUM`},
		},
	},
	DocumentTranskrip: {
		Type:     DocumentTranskrip,
		Title:    "Transkrip Akademik",
		Keywords: []string{"TRANSKRIP", "INDEKS PRESTASI", "IPK", "SKS", "MATA KULIAH", "NILAI"},
		Fields: []ExpectedField{
			{Key: "nama", Label: "Nama", Pattern: `(?i)\bNAMA\b`},
			{Key: "nim", Label: "NIM", Pattern: `(?i)\bNIM\b|NOMOR\s+INDUK\s+MAHASISWA`},
			{Key: "program_studi", Label: "Program Studi", Pattern: `(?i)PROGRAM\s+STUDI|JURUSAN`},
			{Key: "mata_kuliah", Label: "Mata Kuliah", Pattern: `(?i)MATA\s+KULIAH`},
			{Key: "sks", Label: "SKS", Pattern: `(?i)\bSKS\b`},
			{Key: "ipk", Label: "IPK", Pattern: `(?i)\bIPK\b|INDEKS\s+PRESTASI\s+KUMULATIF`},
		},
	},
	DocumentKK: {
		Type:     DocumentKK,
		Title:    "Kartu Keluarga",
		Keywords: []string{"KARTU KELUARGA", "KEPALA KELUARGA", "NO. KK", "HUBUNGAN DALAM KELUARGA", "DUKCAPIL"},
		Fields: []ExpectedField{
			{Key: "nomor_kk", Label: "No. KK", Pattern: `(?i)NO\.?\s*KK|KARTU\s+KELUARGA\s+NO`},
			{Key: "kepala_keluarga", Label: "Nama Kepala Keluarga", Pattern: `(?i)KEPALA\s+KELUARGA`},
			{Key: "alamat", Label: "Alamat", Pattern: `(?i)\bALAMAT\b`},
			{Key: "nik", Label: "NIK", Pattern: `(?i)\bNIK\b`},
			{Key: "hubungan", Label: "Hubungan Dalam Keluarga", Pattern: `(?i)HUBUNGAN\s+DALAM\s+KELUARGA`},
		},
	},
}

// Profile returns the profile of a supported document type.
func Profile(t DocumentType) (DocumentProfile, bool) {
	p, ok := documentProfiles[t]
	return p, ok
}

// Profiles returns every supported profile ordered by type name.
func Profiles() []DocumentProfile {
	out := make([]DocumentProfile, 0, len(documentProfiles))
	for _, p := range documentProfiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// UploadedDocument is the per-request upload. It is never persisted.
type UploadedDocument struct {
	Filename     string
	MimeType     string
	DocumentType DocumentType
	Size         int64
}
