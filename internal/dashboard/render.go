package dashboard

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/models"
)

// WriteOverview prints the current-weather screen.
func WriteOverview(w io.Writer, ov *Overview) error {
	obs := ov.Weather
	fmt.Fprintf(w, "%s  %s, %s, %s\n", Emoji(obs.Condition), obs.Location, obs.Region, obs.Country)
	fmt.Fprintf(w, "   %s\n", obs.Condition)
	fmt.Fprintf(w, "   Temperature:   %.1f °C\n", obs.TemperatureC)
	fmt.Fprintf(w, "   Wind:          %.1f km/h\n", obs.WindSpeedKph)
	fmt.Fprintf(w, "   Precipitation: %.1f mm\n", obs.PrecipitationMm)
	fmt.Fprintf(w, "   Local time:    %s\n", obs.Date)

	if ov.VideoErr != nil {
		fmt.Fprintf(w, "\nVideos unavailable: %v\n", ov.VideoErr)
		return nil
	}
	if len(ov.Videos) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nRelated videos:")
	for _, v := range ov.Videos {
		if _, err := fmt.Fprintf(w, "  - %s\n    %s\n", v.Title, v.URL()); err != nil {
			return err
		}
	}
	return nil
}

// WriteRecords prints the search history as a table.
func WriteRecords(w io.Writer, records []models.Observation) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No records found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLOCATION\tCOUNTRY\tCONDITION\tTEMP °C\tWIND KPH\tPRECIP MM\tDATE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%.1f\t%.1f\t%.2f\t%s\n",
			strconv.FormatInt(r.ID, 10),
			r.Location,
			r.Country,
			Emoji(r.Condition), r.Condition,
			r.TemperatureC,
			r.WindSpeedKph,
			r.PrecipitationMm,
			r.Date,
		)
	}
	return tw.Flush()
}
