// Package premium управляет премиум-функциями (entitlements).
// models.go описывает каталог функций и состояние разблокировок.
// Разблокировка оплачивается монетами, но её учёт не зависит от
// согласованности кошелька: запись о разблокировке самостоятельна.
package premium

// Идентификаторы премиум-функций
const (
	FeatureAdvancedStats = "advanced_stats"
)

// Feature — описание одной премиум-функции.
type Feature struct {
	ID          string
	Name        string
	Description string
	Cost        int64 // Стоимость разблокировки в монетах
	Icon        string
}

// Features — каталог премиум-функций.
// Таблица статична и должна совпадать с тем, что показывает приложение.
var Features = map[string]Feature{
	FeatureAdvancedStats: {
		ID:          FeatureAdvancedStats,
		Name:        "Расширенная статистика",
		Description: "Детальные графики прогресса, недельная/месячная аналитика и инсайты по привычкам",
		Cost:        2,
		Icon:        "analytics",
	},
}

// Entitlements — состояние разблокировок. Персистентно.
type Entitlements struct {
	UnlockedFeatures      []string `json:"unlocked_features"`
	IsAdvancedStatsActive bool     `json:"is_advanced_stats_active"`
}

// Has сообщает, разблокирована ли функция.
func (e *Entitlements) Has(featureID string) bool {
	for _, id := range e.UnlockedFeatures {
		if id == featureID {
			return true
		}
	}
	return false
}
