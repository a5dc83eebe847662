// Package billing — errors.go переводит сырые ошибки платформы
// в закрытый набор категорий. Текст ошибки разбирается ровно один раз,
// на границе со шлюзом; дальше по коду ходят только категории.
package billing

import (
	"errors"
	"fmt"
	"strings"
)

// Kind — категория ошибки биллинга.
type Kind int

const (
	// KindFatal — неустранимая ошибка, повторять бессмысленно.
	KindFatal Kind = iota
	// KindTransient — временная ошибка (сеть, таймаут), можно повторить.
	KindTransient
	// KindAlreadyOwned — товар уже куплен и не потреблён.
	// Для новой покупки это не сбой: начисление придёт через обход незавершённых.
	KindAlreadyOwned
	// KindValidation — некорректный запрос или данные покупки.
	KindValidation
)

// Ошибки шлюза
var (
	// ErrNotInitialized — операция вызвана до успешного Connect
	ErrNotInitialized = errors.New("биллинг не инициализирован")
	// ErrAlreadyOwned — платформа сообщила, что товар уже куплен
	ErrAlreadyOwned = errors.New("товар уже куплен и не потреблён")
	// ErrInvalidResult — платформа вернула пустой или неоднозначный результат
	ErrInvalidResult = errors.New("платформа вернула некорректный результат покупки")
	// ErrUnknownProduct — товара нет в загруженном каталоге
	ErrUnknownProduct = errors.New("товар отсутствует в каталоге")
	// ErrConnection — транспортная ошибка при установке соединения
	ErrConnection = errors.New("не удалось соединиться с биллингом платформы")
)

// CatalogError — магазин вернул пустой или неполный список товаров.
// Missing перечисляет запрошенные id, которых в ответе не оказалось.
type CatalogError struct {
	Requested []string
	Missing   []string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("каталог неполный: запрошено %d, отсутствуют [%s]",
		len(e.Requested), strings.Join(e.Missing, ", "))
}

// Маркеры временных ошибок в сыром тексте платформы.
// Таксономия ошибок у платформы нетипизированная, поэтому других
// вариантов, кроме разбора текста, нет — но делаем это только здесь.
var transientMarkers = []string{
	"network", "timeout", "timed out", "connection", "unavailable",
	"сеть", "таймаут", "соединение", "недоступ",
}

var alreadyOwnedMarkers = []string{
	"already own", "already owned", "уже куплен",
}

// Classify определяет категорию ошибки.
// Типизированные ошибки шлюза распознаются напрямую, остальные —
// по тексту, который прислала платформа.
func Classify(err error) Kind {
	if err == nil {
		return KindFatal
	}

	switch {
	case errors.Is(err, ErrAlreadyOwned):
		return KindAlreadyOwned
	case errors.Is(err, ErrUnknownProduct), errors.Is(err, ErrInvalidResult):
		return KindValidation
	case errors.Is(err, ErrConnection):
		return KindTransient
	case errors.Is(err, ErrNotInitialized):
		return KindFatal
	}

	var catErr *CatalogError
	if errors.As(err, &catErr) {
		return KindValidation
	}

	msg := strings.ToLower(err.Error())
	for _, m := range alreadyOwnedMarkers {
		if strings.Contains(msg, m) {
			return KindAlreadyOwned
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return KindTransient
		}
	}

	return KindFatal
}
