package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/thermocycle/pkg/robot"
	"github.com/gwillem/thermocycle/pkg/sensor"
)

type InfoCommand struct{}

func (c *InfoCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	driver, err := cfg.Arm.OpenDriver(cfg.Waypoints.Rest)
	if err != nil {
		return fmt.Errorf("connect arm: %w", err)
	}
	defer driver.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*readTimeout)
	defer cancel()

	rows := [][]string{
		{"Arm", fmt.Sprintf("%s %s", cfg.Arm.Kind, cfg.Arm.Port)},
	}

	if pose, err := driver.Coords(ctx); err != nil {
		rows = append(rows, []string{"Position", "unavailable: " + err.Error()})
	} else {
		rows = append(rows, []string{"Position", pose.String()})
	}

	if ar, ok := driver.(robot.AngleReader); ok {
		if angles, err := ar.Angles(ctx); err == nil {
			rows = append(rows, []string{"Angles", angles.String()})
		}
	}

	if info, err := driver.ErrorInfo(ctx); err != nil {
		rows = append(rows, []string{"Status", "unavailable: " + err.Error()})
	} else {
		rows = append(rows, []string{"Status", info})
	}

	if cfg.Sensor.Enabled {
		rows = append(rows, []string{"Water temperature", readTemperature(ctx, cfg.Sensor)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return subHeaderStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	fmt.Println(headerStyle.Render("Thermocycle Info"))
	fmt.Println(t.Render())
	return nil
}

func readTemperature(ctx context.Context, cfg sensor.Config) string {
	probe, err := sensor.Open(cfg)
	if err != nil {
		return "unavailable: " + err.Error()
	}
	temp, err := probe.Temperature(ctx)
	if err != nil {
		return "unavailable: " + err.Error()
	}
	return fmt.Sprintf("%.2f C", temp)
}
