package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/mbplant/internal/plant"
)

const (
	sceneWidth      = 60
	sceneHeight     = 16
	sceneScale      = 40.0 // sub-pixels per meter
	historyCapacity = 600
)

type TickMsg time.Time

// Model is the bubbletea live view: it owns the plant context and steps the
// simulation between frames.
type Model struct {
	plant     *plant.Plant
	ctx       *plant.Context
	sceneName string
	duration  float64
	fps       int

	initialQ []float64
	initialV []float64

	t            float64
	steps        int
	stepsPerTick int
	running      bool
	err          error

	heights  []float64
	contacts int
}

func NewModel(p *plant.Plant, ctx *plant.Context, sceneName string, duration float64, fps int) Model {
	if fps <= 0 {
		fps = 30
	}
	stepsPerTick := int(1.0/(float64(fps)*p.TimeStep()) + 0.5)
	if stepsPerTick < 1 {
		stepsPerTick = 1
	}
	return Model{
		plant:        p,
		ctx:          ctx,
		sceneName:    sceneName,
		duration:     duration,
		fps:          fps,
		initialQ:     ctx.Positions(),
		initialV:     ctx.Velocities(),
		stepsPerTick: stepsPerTick,
		running:      true,
		heights:      make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			if err := m.ctx.SetPositions(m.initialQ); err != nil {
				m.err = err
				break
			}
			if err := m.ctx.SetVelocities(m.initialV); err != nil {
				m.err = err
				break
			}
			m.t = 0
			m.steps = 0
			m.heights = m.heights[:0]
			m.err = nil
			m.running = true
		}
	case TickMsg:
		if m.running && m.err == nil && m.t < m.duration {
			m.advance()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m *Model) advance() {
	for i := 0; i < m.stepsPerTick && m.t < m.duration; i++ {
		if err := m.plant.Step(m.ctx); err != nil {
			m.err = err
			m.running = false
			return
		}
		m.t += m.plant.TimeStep()
		m.steps++
	}

	poses, err := m.plant.EvalBodyPoses(m.ctx)
	if err == nil && len(poses) > 1 {
		if len(m.heights) == historyCapacity {
			m.heights = m.heights[1:]
		}
		m.heights = append(m.heights, poses[1].P[2])
	}

	m.contacts = 0
	if m.plant.Registry().NumCollisionGeometries() > 0 {
		if cr, err := m.plant.EvalContactResults(m.ctx); err == nil {
			m.contacts = cr.NumPointPairContacts() + cr.NumHydroelasticContacts()
		}
	}
}

func (m Model) View() string {
	var b strings.Builder

	status := StatusRunning.Render("running")
	switch {
	case m.err != nil:
		status = StatusPaused.Render("error")
	case m.t >= m.duration:
		status = StatusPaused.Render("done")
	case !m.running:
		status = StatusPaused.Render("paused")
	}
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("mbplant live: %s  [%s]", m.sceneName, status)))
	b.WriteString("\n")

	scene, err := SideView(m.plant, m.ctx, sceneWidth, sceneHeight, sceneScale)
	if err != nil {
		scene = fmt.Sprintf("scene unavailable: %v", err)
	}

	var stats strings.Builder
	writeStat := func(label, value string) {
		stats.WriteString(LabelStyle.Render(label) + ValueStyle.Render(value) + "\n")
	}
	writeStat("time", fmt.Sprintf("%.3f / %.1f s", m.t, m.duration))
	writeStat("steps", fmt.Sprintf("%d", m.steps))
	writeStat("dt", fmt.Sprintf("%.1e s", m.plant.TimeStep()))
	writeStat("contacts", fmt.Sprintf("%d", m.contacts))
	if len(m.heights) > 0 {
		writeStat("height", fmt.Sprintf("%.4f m", m.heights[len(m.heights)-1]))
		stats.WriteString("\n" + GraphStyle.Render(Sparkline(m.heights, 32)) + "\n")
	}
	if m.err != nil {
		stats.WriteString("\n" + StatusPaused.Render(m.err.Error()) + "\n")
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		CanvasStyle.Render(scene),
		StatsStyle.Render(stats.String()),
	))
	b.WriteString("\n")

	if m.duration > 0 {
		b.WriteString(ProgressBar(m.t/m.duration, 74))
		b.WriteString("\n")
	}
	b.WriteString(HelpStyle.Render("space pause · r reset · q quit"))
	b.WriteString("\n")

	return b.String()
}
