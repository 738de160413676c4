package services

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"citybike-sync/models"
	"citybike-sync/utils"
)

type SummaryService struct {
	logger *utils.Logger
	out    io.Writer
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger, out: os.Stdout}
}

func (s *SummaryService) Generate(subs models.SubmissionMap) *models.Report {
	report := &models.Report{}
	if len(subs) == 0 {
		return report
	}

	for key, sub := range subs {
		report.Days = append(report.Days, key)
		report.TotalKm += sub.Km
		report.TotalMinutes += sub.Minutes
		if sub.Km > report.BusiestDayKm || (sub.Km == report.BusiestDayKm && key < report.BusiestDay) {
			report.BusiestDay = key
			report.BusiestDayKm = sub.Km
		}
	}
	sort.Strings(report.Days)

	s.logger.Debug("[summary] %d days, %.2f km, %d min", len(report.Days), report.TotalKm, report.TotalMinutes)
	return report
}

func (s *SummaryService) Print(r *models.Report, subs models.SubmissionMap) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	w := s.out

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🚲 CITY BIKE → KILOMETRIKISA SYNC\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Days with rides   : \033[1m%d\033[0m\n", len(r.Days))
	fmt.Fprintf(w, "  Total distance    : \033[1;32m%s km\033[0m\n", models.FormatKm(r.TotalKm))
	hours, minutes := models.SplitMinutes(r.TotalMinutes)
	fmt.Fprintf(w, "  Total time        : \033[1;32m%d h %d min\033[0m\n", hours, minutes)
	fmt.Fprintf(w, "  Distance forms    : %d\n", r.DistanceForms)
	fmt.Fprintf(w, "  Duration forms    : %d\n", r.DurationForms)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Daily totals\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Days) == 0 {
		fmt.Fprintf(w, "  No rides this month\n")
	} else {
		for _, key := range r.Days {
			sub := subs[key]
			marker := ""
			if key == r.BusiestDay {
				marker = " \033[1;31m★\033[0m"
			}
			fmt.Fprintf(w, "  %s  %8s km  %4d min%s\n", key, models.FormatKm(sub.Km), sub.Minutes, marker)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}
