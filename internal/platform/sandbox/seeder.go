// Package sandbox generates reproducible demo data for every dashboard and
// loads it through the record store, for developer on-boarding and UI demos.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/DBEST-EZRA/HMIS/internal/platform/store"
)

// SeedConfig controls the volume of generated data.
type SeedConfig struct {
	Patients      int   `json:"patients"`
	WardStays     int   `json:"wardStays"`
	LedgerDays    int   `json:"ledgerDays"`
	Medicines     int   `json:"medicines"`
	Sales         int   `json:"sales"`
	Employees     int   `json:"employees"`
	Appointments  int   `json:"appointments"`
	BirthRecords  int   `json:"birthRecords"`
	AmbulanceRuns int   `json:"ambulanceRuns"`
	Seed          int64 `json:"seed"`
}

// DefaultSeedConfig returns a small hospital's worth of data.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Patients:      40,
		WardStays:     8,
		LedgerDays:    3,
		Medicines:     12,
		Sales:         20,
		Employees:     10,
		Appointments:  15,
		BirthRecords:  5,
		AmbulanceRuns: 6,
	}
}

// SeedResult reports what was written.
type SeedResult struct {
	Counts   map[string]int `json:"counts"`
	Total    int            `json:"total"`
	Duration string         `json:"duration"`
}

// ---------------------------------------------------------------------------
// Reference pools
// ---------------------------------------------------------------------------

var (
	firstNamesMale   = []string{"Brian", "Kevin", "Otieno", "Mwangi", "Kiprono", "Juma", "Daniel", "Peter", "Hassan", "Samuel"}
	firstNamesFemale = []string{"Grace", "Akinyi", "Wanjiru", "Faith", "Mercy", "Amina", "Cherono", "Esther", "Njeri", "Mary"}
	lastNames        = []string{"Kamau", "Ochieng", "Wanjala", "Mutua", "Kiptoo", "Njoroge", "Omondi", "Achieng", "Barasa", "Mohamed"}
	residences       = []string{"Kisumu", "Nakuru", "Eldoret", "Thika", "Machakos", "Kakamega", "Nyeri", "Kitale"}
	visitReasons     = []string{"Fever", "Headache", "Cough", "Abdominal pain", "Follow-up", "Antenatal visit", "Injury", "Rash"}
	symptoms         = []string{"High temperature", "Chills", "Dry cough", "Vomiting", "Fatigue", "Joint pain"}
	labTests         = []string{"Malaria BS", "Full haemogram", "Urinalysis", "Widal", "Blood sugar", "Stool O/C"}
	labResults       = []string{"Negative", "Positive", "Within normal range", "Elevated", "Pending review"}
	drugs            = []string{"Paracetamol 500mg", "Amoxicillin 250mg", "Artemether/Lumefantrine", "ORS sachets", "Ibuprofen 400mg"}
	clinicians       = []string{"Dr. Wafula", "Dr. Chebet", "CO Kariuki", "Dr. Abdi"}
	wardReasons      = []string{"Severe malaria", "Pneumonia", "Post-operative care", "Dehydration", "Observation"}
	wardNotes        = []string{"Patient stable", "Responding to treatment", "Fever reduced", "Ate well", "Complained of pain"}
	wardObs          = []string{"BP 120/80", "Temp 37.2C", "Pulse 88", "SpO2 97%", "RR 18"}
	extraCharges     = []string{"Oxygen", "IV fluids", "Dressing", "X-ray", "Consumables"}
	paymentMethods   = []string{"Cash", "Mpesa", "SHA"}
	cases            = []string{"Road accident", "Labour", "Cardiac arrest", "Fall", "Burns"}
	staffRoles       = []string{"clinician", "nurse", "lab", "pharmacy", "reception", "accounts", "admin"}
	qualifications   = []string{"Diploma", "Higher Diploma", "Degree", "Masters"}
)

type medicine struct {
	name, category, unit, dosage string
	price                        int
}

var medicines = []medicine{
	{"Paracetamol 500mg", "Analgesic", "tablets", "2x3", 5},
	{"Amoxicillin 250mg", "Antibiotic", "capsules", "1x3", 15},
	{"Artemether/Lumefantrine", "Antimalarial", "tablets", "4x2", 120},
	{"ORS sachets", "Rehydration", "sachets", "as needed", 30},
	{"Ibuprofen 400mg", "Analgesic", "tablets", "1x3", 8},
	{"Metformin 500mg", "Antidiabetic", "tablets", "1x2", 10},
	{"Ceftriaxone 1g", "Antibiotic", "vials", "1x1", 250},
	{"Salbutamol inhaler", "Bronchodilator", "inhalers", "2 puffs", 450},
	{"Ferrous sulphate", "Supplement", "tablets", "1x1", 3},
	{"Cetirizine 10mg", "Antihistamine", "tablets", "1x1", 6},
	{"Omeprazole 20mg", "Antacid", "capsules", "1x1", 12},
	{"Zinc sulphate", "Supplement", "tablets", "1x1", 4},
}

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic demo documents.
type DataGenerator struct {
	rng       *rand.Rand
	counter   uint64
	employees int
	today     time.Time
}

// NewDataGenerator returns a generator seeded for reproducibility. Dates are
// generated relative to today. If seed is 0 a time-based seed is chosen.
func NewDataGenerator(seed int64, today time.Time) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{
		rng:   rand.New(rand.NewSource(seed)),
		today: today.UTC(),
	}
}

func (g *DataGenerator) nextID(prefix string) string {
	g.counter++
	return fmt.Sprintf("%s-%08x-%04x", prefix, g.rng.Uint32(), g.counter)
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

// daysAgo returns a date at most n days before today.
func (g *DataGenerator) daysAgo(n int) string {
	return g.today.AddDate(0, 0, -g.rng.Intn(n+1)).Format("2006-01-02")
}

func (g *DataGenerator) phone() string {
	return fmt.Sprintf("07%02d%06d", g.rng.Intn(100), g.rng.Intn(1000000))
}

func (g *DataGenerator) idNumber() string {
	return strconv.Itoa(20000000 + g.rng.Intn(20000000))
}

func (g *DataGenerator) person() (name, sex string) {
	if g.rng.Intn(2) == 0 {
		return g.pick(firstNamesMale) + " " + g.pick(lastNames), "Male"
	}
	return g.pick(firstNamesFemale) + " " + g.pick(lastNames), "Female"
}

func (g *DataGenerator) amount(min, step, steps int) string {
	return strconv.Itoa(min + step*g.rng.Intn(steps))
}

// GeneratePatient produces a reception registration, followed through the
// clinician, lab and pharmacy desks for most visits.
func (g *DataGenerator) GeneratePatient() store.Fields {
	name, sex := g.person()
	f := store.F(
		"fullName", name,
		"idNumber", g.idNumber(),
		"phone", g.phone(),
		"age", strconv.Itoa(1+g.rng.Intn(85)),
		"sex", sex,
		"residence", g.pick(residences),
		"reason", g.pick(visitReasons),
		"assignee", g.pick(clinicians),
	)
	if g.rng.Intn(4) == 0 {
		return f // still in the queue
	}
	f = append(f, store.F(
		"symptoms", g.pick(symptoms),
		"notes", "Seen and assessed",
		"recommendedTest", g.pick(labTests),
		"fee", "200",
		"charges", g.amount(0, 100, 6),
	)...)
	if g.rng.Intn(3) > 0 {
		f = append(f, store.F("testResult", g.pick(labResults), "labCharges", g.amount(200, 50, 10))...)
	}
	if g.rng.Intn(3) > 0 {
		f = append(f, store.F("drugs", g.pick(drugs), "pharmacyCharges", g.amount(50, 25, 20))...)
	}
	return f
}

// GenerateWardStay produces an admission with a few days of ledger entries.
func (g *DataGenerator) GenerateWardStay(ledgerDays int) store.Fields {
	name, sex := g.person()
	admitted := g.today.AddDate(0, 0, -(ledgerDays + g.rng.Intn(5)))
	f := store.F(
		"inpatientNumber", fmt.Sprintf("IP-%05d", g.rng.Intn(100000)),
		"patientName", name,
		"phone", g.phone(),
		"idNumber", g.idNumber(),
		"age", strconv.Itoa(1+g.rng.Intn(85)),
		"sex", sex,
		"reason", g.pick(wardReasons),
		"admissionDate", admitted.Format("2006-01-02"),
		"charges", g.amount(1000, 500, 6),
	)

	var notes, obs, requests, meds, charges []interface{}
	for d := 0; d < ledgerDays; d++ {
		date := admitted.AddDate(0, 0, d).Format("2006-01-02")
		notes = append(notes, map[string]interface{}{"date": date, "note": g.pick(wardNotes)})
		obs = append(obs, map[string]interface{}{"date": date, "observation": g.pick(wardObs)})
		if g.rng.Intn(2) == 0 {
			requests = append(requests, map[string]interface{}{"date": date, "request": g.pick(labTests)})
		}
		meds = append(meds, map[string]interface{}{"date": date, "medication": g.pick(drugs)})
		if g.rng.Intn(2) == 0 {
			charges = append(charges, map[string]interface{}{
				"date": date, "charge": g.pick(extraCharges), "amount": g.amount(100, 50, 10),
			})
		}
	}
	f = append(f, store.F(
		"dailyNotes", orEmpty(notes),
		"observations", orEmpty(obs),
		"labRequests", orEmpty(requests),
		"medications", orEmpty(meds),
		"additionalCharges", orEmpty(charges),
	)...)
	if g.rng.Intn(4) == 0 {
		f.Set("dischargeDate", g.today.Format("2006-01-02"))
	}
	return f
}

func orEmpty(list []interface{}) []interface{} {
	if list == nil {
		return []interface{}{}
	}
	return list
}

// GenerateMedicine produces the inventory entry for the i-th catalogue item.
func (g *DataGenerator) GenerateMedicine(i int) store.Fields {
	m := medicines[i%len(medicines)]
	name := m.name
	if i >= len(medicines) {
		name = fmt.Sprintf("%s (batch %d)", m.name, i/len(medicines)+1)
	}
	return store.F(
		"medicineName", name,
		"batchNo", fmt.Sprintf("B%04d", g.rng.Intn(10000)),
		"category", m.category,
		"quantity", 20+g.rng.Intn(200),
		"unit", m.unit,
		"expiry", g.today.AddDate(1+g.rng.Intn(2), g.rng.Intn(12), 0).Format("2006-01-02"),
		"dosage", m.dosage,
		"price", strconv.Itoa(m.price),
		"reorderLevel", 10+5*g.rng.Intn(5),
		"barcode", fmt.Sprintf("6%011d", g.rng.Int63n(100000000000)),
	)
}

// GenerateEmployee produces a staff roster entry.
func (g *DataGenerator) GenerateEmployee() store.Fields {
	name, _ := g.person()
	g.employees++
	return store.F(
		"name", name,
		"email", fmt.Sprintf("staff%04d@hospital.local", g.employees),
		"role", g.pick(staffRoles),
		"qualification", g.pick(qualifications),
		"specialization", "General",
		"salary", g.amount(30000, 5000, 20),
	)
}

// GenerateAttendance produces a clock-in for name on a recent day.
func (g *DataGenerator) GenerateAttendance(name string) store.Fields {
	day := g.today.AddDate(0, 0, -g.rng.Intn(3))
	in := 7 + g.rng.Intn(3)
	stamp := time.Date(day.Year(), day.Month(), day.Day(), in, g.rng.Intn(60), 0, 0, time.UTC)
	return store.F(
		"name", name,
		"checkIn", stamp.Format("15:04"),
		"checkOut", fmt.Sprintf("%02d:%02d", in+8, g.rng.Intn(60)),
		"timestamp", store.FormatTime(stamp),
	)
}

// GenerateAppointment produces a reception booking in the coming week.
func (g *DataGenerator) GenerateAppointment() store.Fields {
	name, _ := g.person()
	return store.F(
		"name", name,
		"phone", g.phone(),
		"idNumber", g.idNumber(),
		"date", g.today.AddDate(0, 0, g.rng.Intn(7)).Format("2006-01-02"),
		"time", fmt.Sprintf("%02d:%02d", 8+g.rng.Intn(9), 15*g.rng.Intn(4)),
		"attendedBy", g.pick(clinicians),
	)
}

// GenerateBirthRecord produces a maternity registration.
func (g *DataGenerator) GenerateBirthRecord() store.Fields {
	child, _ := g.person()
	father, _ := g.person()
	mother := g.pick(firstNamesFemale) + " " + g.pick(lastNames)
	return store.F(
		"childName", child,
		"fathersName", father,
		"mothersName", mother,
		"birthWeight", fmt.Sprintf("%.1f", 2.4+float64(g.rng.Intn(20))/10),
		"birthDate", g.daysAgo(30),
		"idNumber", g.idNumber(),
		"phone", g.phone(),
	)
}

// GenerateAmbulanceRun produces an emergency dispatch.
func (g *DataGenerator) GenerateAmbulanceRun() store.Fields {
	name, _ := g.person()
	return store.F(
		"name", name,
		"phone", g.phone(),
		"idNumber", g.idNumber(),
		"case", g.pick(cases),
		"pickupLocation", g.pick(residences),
		"charges", g.amount(1500, 500, 8),
		"date", g.daysAgo(2),
	)
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Seeder builds a full demo data set and loads it into a store.
type Seeder struct {
	generator *DataGenerator
	config    SeedConfig
}

// NewSeeder creates a Seeder with dates relative to today.
func NewSeeder(config SeedConfig, today time.Time) *Seeder {
	return &Seeder{generator: NewDataGenerator(config.Seed, today), config: config}
}

// Plan generates every document without writing anything. Inventory items
// carry preassigned ids so sales can reference them; stock already reflects
// the generated sales.
func (s *Seeder) Plan() []store.AddOp {
	g, cfg := s.generator, s.config
	var ops []store.AddOp
	add := func(coll, id string, f store.Fields) {
		ops = append(ops, store.AddOp{Collection: coll, ID: id, Fields: f})
	}

	for i := 0; i < cfg.Patients; i++ {
		add(store.Patients, "", g.GeneratePatient())
	}
	for i := 0; i < cfg.WardStays; i++ {
		add(store.Ward, "", g.GenerateWardStay(cfg.LedgerDays))
	}

	type stocked struct {
		id     string
		fields store.Fields
	}
	var stock []stocked
	for i := 0; i < cfg.Medicines; i++ {
		stock = append(stock, stocked{id: g.nextID("med"), fields: g.GenerateMedicine(i)})
	}
	var sales []store.Fields
	for i := 0; i < cfg.Sales && len(stock) > 0; i++ {
		item := &stock[g.rng.Intn(len(stock))]
		have, _ := strconv.Atoi(item.fields.String("quantity"))
		if have == 0 {
			continue
		}
		qty := 1 + g.rng.Intn(min(have, 10))
		price, _ := strconv.Atoi(item.fields.String("price"))
		item.fields.Set("quantity", have-qty)
		sales = append(sales, store.F(
			"medicineId", item.id,
			"medicineName", item.fields.String("medicineName"),
			"prescribedFor", "",
			"quantity", qty,
			"price", item.fields.String("price"),
			"total", strconv.Itoa(price*qty),
			"paymentMethod", g.pick(paymentMethods),
			"description", "",
		))
	}
	for _, it := range stock {
		add(store.PharmacyInventory, it.id, it.fields)
	}
	for _, f := range sales {
		add(store.Sales, "", f)
	}

	for i := 0; i < cfg.Employees; i++ {
		emp := g.GenerateEmployee()
		add(store.Users, "", emp)
		add(store.Attendance, "", g.GenerateAttendance(emp.String("name")))
	}
	for i := 0; i < cfg.Appointments; i++ {
		add(store.Appointments, "", g.GenerateAppointment())
	}
	for i := 0; i < cfg.BirthRecords; i++ {
		add(store.BirthRecords, "", g.GenerateBirthRecord())
	}
	for i := 0; i < cfg.AmbulanceRuns; i++ {
		add(store.Ambulance, "", g.GenerateAmbulanceRun())
	}
	return ops
}

// Load writes the planned data set in one transaction.
func (s *Seeder) Load(ctx context.Context, st store.Store) (*SeedResult, error) {
	start := time.Now()
	ops := s.Plan()
	batch := make([]store.Op, len(ops))
	counts := make(map[string]int)
	for i, op := range ops {
		batch[i] = op
		counts[op.Collection]++
	}
	if err := st.Transact(ctx, batch...); err != nil {
		return nil, fmt.Errorf("load demo data: %w", err)
	}
	return &SeedResult{Counts: counts, Total: len(ops), Duration: time.Since(start).String()}, nil
}

// Collections lists the collections of a result in name order.
func (r *SeedResult) Collections() []string {
	names := make([]string, 0, len(r.Counts))
	for n := range r.Counts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
