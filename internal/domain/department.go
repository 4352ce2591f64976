package domain

// Department is one of the fixed operational categories an incident can be
// assigned to. The set is closed: classifiers must never invent a new code.
type Department string

const (
	DeptMaintenance  Department = "mantenimiento"
	DeptHousekeeping Department = "ama_de_llaves"
	DeptFoodBev      Department = "alimentos_bebidas"
	DeptIT           Department = "sistemas"
	DeptSecurity     Department = "seguridad"
	DeptGardens      Department = "jardineria"
)

// AllDepartments lists the closed set in display order.
func AllDepartments() []Department {
	return []Department{
		DeptMaintenance,
		DeptHousekeeping,
		DeptFoodBev,
		DeptIT,
		DeptSecurity,
		DeptGardens,
	}
}

// ValidDepartment reports whether code belongs to the closed set.
func ValidDepartment(code string) bool {
	for _, d := range AllDepartments() {
		if string(d) == code {
			return true
		}
	}
	return false
}

// DeptScore is one ranked alternative from the local detector.
type DeptScore struct {
	Department Department
	Score      float64
}

// DeptResult is the ephemeral output of a department classification attempt.
// Department is empty when no tier could decide; Alternatives then carries the
// best local candidates so the caller can ask instead of guessing.
type DeptResult struct {
	Department   Department
	Confidence   float64
	Source       string // "alias", "lexicon", "semantic", "none"
	Alternatives []DeptScore
}

// Decided reports whether the detector committed to a department.
func (r DeptResult) Decided() bool {
	return r.Department != ""
}
