package models

// Mutation kinds accepted by the queue and the warehouse service.
const (
	KindSession     = "session"
	KindCountLine   = "count_line"
	KindUnknownItem = "unknown_item"
)

// Queue entry lifecycle.
const (
	EntryPending = "pending"
	EntryLocked  = "locked"
	EntryError   = "error"
)

// Scan flow steps kept in ScanState.
const (
	StepIdle         = "idle"
	StepSessionOpen  = "session_open"
	StepAwaitingQty  = "awaiting_qty"
	StepConfirmation = "confirmation"
)

const (
	// DefaultCacheTTLHours время жизни кэша справочника (7 суток)
	DefaultCacheTTLHours = 7 * 24

	// DefaultCacheMaxEntries максимальный размер кэша справочника
	DefaultCacheMaxEntries = 1000

	// DefaultBatchSize размер батча при отправке очереди
	DefaultBatchSize = 10

	// DefaultMaxRetries максимальное число повторов доставки
	DefaultMaxRetries = 5

	// DefaultMaxQueueEntries жесткий потолок очереди мутаций
	DefaultMaxQueueEntries = 500

	// DefaultDebounceSeconds окно дребезга при восстановлении связи
	DefaultDebounceSeconds = 2

	// DefaultMaintenanceIntervalMinutes период обслуживания хранилища
	DefaultMaintenanceIntervalMinutes = 60

	// DefaultSyncIntervalMinutes период фоновой синхронизации
	DefaultSyncIntervalMinutes = 60

	// DefaultProbeIntervalSeconds период проверки связи
	DefaultProbeIntervalSeconds = 15

	// DefaultMaxPassIterations потолок итераций одного прохода
	DefaultMaxPassIterations = 50

	// DefaultScanStateTTL время жизни состояния оператора в Redis (секунды)
	DefaultScanStateTTL = 12 * 60 * 60
)
