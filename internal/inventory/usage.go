package inventory

import "github.com/joao-fontenele/rentalflow/internal/domain"

// PeakUsage is the highest total quantity booked on any single day of the
// inclusive range [start, end]. Usage only rises on the first day of a
// booking, so only those days (clipped to the range) are evaluated and the
// cost does not grow with the length of the range.
func PeakUsage(bookings []domain.Booking, start, end domain.Date) int {
	peak := 0
	for _, candidate := range bookings {
		if candidate.EndDate.Before(start) || candidate.StartDate.After(end) {
			continue
		}
		day := candidate.StartDate
		if day.Before(start) {
			day = start
		}

		used := 0
		for _, b := range bookings {
			if !day.Before(b.StartDate) && !day.After(b.EndDate) {
				used += b.Quantity
			}
		}
		peak = max(peak, used)
	}
	return peak
}

// Available computes what is left of total over the range given the
// existing bookings.
func Available(total int, bookings []domain.Booking, start, end domain.Date, quantity int) domain.Availability {
	left := max(0, total-PeakUsage(bookings, start, end))
	return domain.Availability{Available: quantity <= left, MaxAvailable: left}
}
