/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	dfv1 "github.com/numaproj/numascale/pkg/apis/numascale/v1alpha1"
)

var (
	greenColor  = lipgloss.Color("#10B981")
	amberColor  = lipgloss.Color("#F59E0B")
	redColor    = lipgloss.Color("#F87171")
	blueColor   = lipgloss.Color("#60A5FA")
	mutedColor  = lipgloss.Color("#9CA3AF")
	borderColor = lipgloss.Color("#6B7280")

	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(redColor)
	warnStyle   = lipgloss.NewStyle().Foreground(amberColor)
)

func phaseStyle(phase string) lipgloss.Style {
	switch phase {
	case string(dfv1.ServicePhaseRunning): // same value as WorkUnitPhaseRunning
		return lipgloss.NewStyle().Foreground(greenColor)
	case string(dfv1.ServicePhaseScaling):
		return lipgloss.NewStyle().Foreground(blueColor)
	case string(dfv1.ServicePhasePending):
		return lipgloss.NewStyle().Foreground(amberColor)
	case string(dfv1.ServicePhaseFailed):
		return lipgloss.NewStyle().Foreground(redColor)
	default:
		return mutedStyle
	}
}

// printTable renders rows under headers. The column named by phaseColumn, if any, is colored by phase.
func printTable(w io.Writer, headers []string, rows [][]string, phaseColumn int) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("No resources found."))
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColor)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == phaseColumn && row >= 0 && row < len(rows) {
				return phaseStyle(rows[row][col]).Padding(0, 1)
			}
			return cellStyle
		})
	_, _ = fmt.Fprintln(w, t.Render())
}

func printServices(w io.Writer, services []*dfv1.Service) {
	rows := make([][]string, 0, len(services))
	for _, s := range services {
		autoscale := "-"
		if p := s.Spec.Policy; p != nil && p.Enabled {
			autoscale = fmt.Sprintf("%d-%d @%v%%", p.GetMinReplicas(), p.MaxReplicas, p.TargetUtilization)
		}
		rows = append(rows, []string{
			s.Namespace,
			s.Name,
			string(s.Status.Phase),
			fmt.Sprintf("%d/%d", s.Status.ReadyReplicas, s.GetDesiredReplicas()),
			s.Spec.Template.Requests.String(),
			autoscale,
			age(s.Status.LastUpdated),
		})
	}
	printTable(w, []string{"NAMESPACE", "NAME", "PHASE", "READY", "REQUESTS", "AUTOSCALE", "UPDATED"}, rows, 2)
}

func printService(w io.Writer, s *dfv1.Service, units []*dfv1.WorkUnit) {
	_, _ = fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Service:"), s.Key())
	_, _ = fmt.Fprintf(w, "%s %s\n", titleStyle.Render("UID:"), s.UID)
	_, _ = fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Phase:"), phaseStyle(string(s.Status.Phase)).Render(string(s.Status.Phase)))
	if s.Status.Message != "" {
		_, _ = fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Message:"), s.Status.Message)
	}
	_, _ = fmt.Fprintf(w, "%s %d desired, %d current, %d ready\n", titleStyle.Render("Replicas:"),
		s.GetDesiredReplicas(), s.Status.Replicas, s.Status.ReadyReplicas)
	_, _ = fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Requests:"), s.Spec.Template.Requests)
	if p := s.Spec.Policy; p != nil {
		_, _ = fmt.Fprintf(w, "%s enabled=%t min=%d max=%d target=%v%% cooldown=%s/%s\n", titleStyle.Render("Policy:"),
			p.Enabled, p.GetMinReplicas(), p.MaxReplicas, p.TargetUtilization, p.Cooldown(dfv1.ScalingDirectionUp), p.Cooldown(dfv1.ScalingDirectionDown))
	}
	if len(s.Status.Conditions) > 0 {
		_, _ = fmt.Fprintln(w)
		rows := make([][]string, 0, len(s.Status.Conditions))
		for _, c := range s.Status.Conditions {
			rows = append(rows, []string{c.Type, string(c.Status), c.Reason, c.Message})
		}
		printTable(w, []string{"CONDITION", "STATUS", "REASON", "MESSAGE"}, rows, -1)
	}
	_, _ = fmt.Fprintln(w)
	printWorkUnits(w, units)
}

func printWorkUnits(w io.Writer, units []*dfv1.WorkUnit) {
	rows := make([][]string, 0, len(units))
	for _, u := range units {
		node := u.NodeName
		if node == "" {
			node = "<none>"
		}
		rows = append(rows, []string{u.Name, string(u.Phase), node, u.Requests.String(),
			fmt.Sprintf("%.1f", u.Status.OperationRate), u.Status.Reason, age(u.CreatedAt)})
	}
	printTable(w, []string{"WORK UNIT", "PHASE", "NODE", "REQUESTS", "RATE", "REASON", "AGE"}, rows, 1)
}

func printQuotas(w io.Writer, quotas map[string]dfv1.ResourceList) {
	namespaces := make([]string, 0, len(quotas))
	for ns := range quotas {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	rows := make([][]string, 0, len(namespaces))
	for _, ns := range namespaces {
		rows = append(rows, []string{ns, quotas[ns].String()})
	}
	printTable(w, []string{"NAMESPACE", "QUOTA"}, rows, -1)
}

func printEvents(w io.Writer, events []dfv1.Event) {
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{e.Timestamp.Format(time.RFC3339), string(e.Type), e.Service, e.WorkUnit, e.NodeName, e.Message})
	}
	printTable(w, []string{"TIME", "TYPE", "SERVICE", "WORK UNIT", "NODE", "MESSAGE"}, rows, -1)
}

func age(t metav1.Time) string {
	if t.IsZero() {
		return "-"
	}
	return time.Since(t.Time).Round(time.Second).String()
}

func joinOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ",")
}
