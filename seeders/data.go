package seeders

import "crf-system/pkg/constants"

var departmentsData = []struct {
	Code string
	Name string
}{
	{Code: "IT", Name: "Bahagian Teknologi Maklumat"},
	{Code: "FIN", Name: "Bahagian Kewangan"},
	{Code: "HR", Name: "Bahagian Sumber Manusia"},
	{Code: "DIR", Name: "Pejabat Pengarah"},
}

var rolesData = map[string]string{
	constants.RoleDeptHead:           "Ketua Unit (руководитель отдела)",
	constants.RoleDeputyDirector:     "Timbalan Pengarah (заместитель директора)",
	constants.RoleITAcknowledger:     "Принимает заявки в ИТ",
	constants.RoleITAssigner:         "Назначает исполнителей в ИТ",
	constants.RoleDispatcher:         "Диспетчер внешних работ",
	constants.RoleITAdmin:            "Администратор ИТ",
	constants.RoleAdminOverride:      "Просмотр всех заявок",
	constants.RoleVendorAdmin:        "Администратор подрядчика",
	constants.RoleInternalTechnician: "Внутренний техник",
	constants.RoleExternalTechnician: "Внешний техник",
}

// Категории и их факторы. Для категорий с RequiresDeputy заявку дополнительно согласует заместитель директора.
var categoriesData = []struct {
	Name           string
	RequiresDeputy bool
	Factors        []string
}{
	{Name: "Perkakasan", Factors: []string{"Komputer", "Pencetak", "Pengimbas"}},
	{Name: "Perisian", Factors: []string{"Pemasangan", "Lesen", "Kemas kini"}},
	{Name: "Rangkaian", Factors: []string{"Wi-Fi", "LAN", "VPN"}},
	{Name: "Akaun Pengguna", Factors: []string{"Akaun baharu", "Reset kata laluan"}},
	{Name: "Sistem Baharu", RequiresDeputy: true, Factors: []string{"Pembangunan", "Integrasi"}},
	{Name: "Perolehan", RequiresDeputy: true, Factors: []string{"Perkakasan", "Perisian"}},
}

// SeedUser - тестовый пользователь. Роли задаются кодами.
type SeedUser struct {
	Fio         string   `validate:"required,not_blank"`
	Email       string   `validate:"required,email"`
	NationalID  string   `validate:"required,ic_number"`
	Designation string   `validate:"required"`
	Department  string   `validate:"required"`
	Roles       []string `validate:"dive,oneof=HOU TIMBALAN_PENGARAH IT_ACKNOWLEDGER IT_ASSIGNER DISPATCHER IT_ADMIN ADMIN_OVERRIDE VENDOR_ADMIN INTERNAL_TECHNICIAN EXTERNAL_TECHNICIAN"`
}

var usersData = []SeedUser{
	// Руководство
	{"Ahmad Faizal bin Hassan", "faizal.hassan@crf.test", "750312-10-5521", "Pengarah", "DIR", nil},
	{"Noraini binti Yusof", "noraini.yusof@crf.test", "780621-14-6632", "Timbalan Pengarah", "DIR", []string{constants.RoleDeputyDirector}},

	// ИТ
	{"Mohd Rizal bin Ismail", "rizal.ismail@crf.test", "800115-08-7713", "Ketua Unit IT", "IT", []string{constants.RoleDeptHead, constants.RoleITAdmin}},
	{"Siti Aminah binti Omar", "aminah.omar@crf.test", "850903-10-4424", "Pegawai Teknologi Maklumat", "IT", []string{constants.RoleITAcknowledger}},
	{"Lim Wei Jie", "lim.weijie@crf.test", "870227-07-5535", "Penolong Pegawai IT", "IT", []string{constants.RoleITAssigner}},
	{"Rajesh a/l Kumar", "rajesh.kumar@crf.test", "880714-05-3346", "Penyelaras Vendor", "IT", []string{constants.RoleDispatcher}},
	{"Hafiz bin Abdullah", "hafiz.abdullah@crf.test", "920511-01-2257", "Juruteknik Komputer", "IT", []string{constants.RoleInternalTechnician}},
	{"Tan Mei Ling", "tan.meiling@crf.test", "930819-10-6168", "Juruteknik Komputer", "IT", []string{constants.RoleInternalTechnician}},
	{"Azman bin Salleh", "azman.salleh@crf.test", "760430-14-1179", "Auditor Dalaman", "IT", []string{constants.RoleAdminOverride}},

	// Подрядчик
	{"Kavitha a/p Raman", "kavitha.raman@vendor.test", "840206-08-3380", "Pengurus Vendor", "IT", []string{constants.RoleVendorAdmin}},
	{"Wong Kah Seng", "wong.kahseng@vendor.test", "900923-07-4491", "Juruteknik Vendor", "IT", []string{constants.RoleExternalTechnician}},

	// Заявители
	{"Zulkifli bin Ahmad", "zulkifli.ahmad@crf.test", "790118-10-5502", "Ketua Unit Kewangan", "FIN", []string{constants.RoleDeptHead}},
	{"Nurul Huda binti Rahman", "nurul.huda@crf.test", "910304-14-6613", "Pembantu Akauntan", "FIN", nil},
	{"Chong Siew Lan", "chong.siewlan@crf.test", "820727-08-7724", "Ketua Unit Sumber Manusia", "HR", []string{constants.RoleDeptHead}},
	{"Farah binti Kamal", "farah.kamal@crf.test", "950612-01-8835", "Pegawai Sumber Manusia", "HR", nil},
}
