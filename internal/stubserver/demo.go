package stubserver

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/atsctl/internal/ats"
	"github.com/spigell/atsctl/internal/pipeline"
)

type sample struct {
	pdfName string
	text    string
}

var samples = []sample{
	{
		pdfName: "resume_john_doe.pdf",
		text: `John Doe
Senior Software Engineer
Email: john.doe@email.com | Phone: +1 555-123-4567 | Location: San Francisco, CA

PROFESSIONAL SUMMARY
5+ years of experience in full-stack development. Expertise in React, Node.js, and Python.

EXPERIENCE
Senior Software Engineer | TechCorp Inc. | 2020 - Present
- Developed microservices using Python and FastAPI
- Led migration to Kubernetes
Software Developer | StartUpXYZ | 2018 - 2020
- Built React frontend applications

EDUCATION
B.S. Computer Science | MIT | 2018

SKILLS
Python, JavaScript, React, Node.js, PostgreSQL, Docker, AWS`,
	},
	{
		pdfName: "cv_marie_dupont.pdf",
		text: `Marie Dupont
   INGENIEURE LOGICIEL
   marie.dupont@mail.fr  |  Paris, France

   EXPERIENCE
   2021-2024  Ingenieure Senior  |  EntrepriseSoft
   Developpement applications Java Spring
   2018-2021  Developpeuse  |  TechStart

   FORMATION
   Master Informatique  |  Universite Paris-Saclay  |  2018

   COMPETENCES
   Java, Spring, Python, SQL, Git, Agile`,
	},
	{
		pdfName: "alex_smith_resume.pdf",
		text: `Alex Smith — alex.smith@mail.com — NYC
    FULL STACK DEV
    skills: react node python sql
    work:
    - 2022-now: Dev at BigCo (react, api)
    - 2020-2022: Junior at SmallCo
    edu: CS degree 2020`,
	},
	{
		pdfName: "carlos_garcia_cv.pdf",
		text: `Carlos García
    Desarrollador Full Stack | Full Stack Developer
    carlos@email.com | Madrid, Spain | Español, English (fluent)

    EXPÉRIENCE | EXPERIENCE
    Full Stack Developer | IberiaTech | 2021 - Present
    - Frontend con Vue.js y React

    EDUCATION | FORMACIÓN
    Ingeniería Informática | Universidad Complutense | 2020

    COMPETENCIAS | SKILLS
    Python, JavaScript, Vue, React, Django, PostgreSQL, AWS`,
	},
}

var jobOffers = []ats.JobOffer{
	{
		ID:             "job-backend-python",
		Title:          "Senior Backend Engineer",
		Description:    "Build and operate Python microservices with FastAPI on Kubernetes. Mentor junior developers.",
		RequiredSkills: []string{"Python", "FastAPI", "Kubernetes", "PostgreSQL"},
		Location:       "San Francisco, CA",
		Department:     "Engineering",
	},
	{
		ID:             "job-fullstack-js",
		Title:          "Full Stack Developer",
		Description:    "Ship React and Vue frontends backed by Node.js and Django APIs.",
		RequiredSkills: []string{"React", "Vue", "Node.js", "Django"},
		Location:       "Remote (EU)",
		Department:     "Product",
	},
	{
		ID:             "job-java-lead",
		Title:          "Java Tech Lead",
		Description:    "Lead a team of four building Java Spring services with SQL databases and Agile practices.",
		RequiredSkills: []string{"Java", "Spring", "SQL", "Agile"},
		Location:       "Paris, France",
		Department:     "Platform",
	},
}

func (s *Server) handleDemoLoad(c *fiber.Ctx) error {
	usePDFs := c.QueryBool("use_pdfs", false)

	report := ats.BootstrapReport{
		Message: "Demo data loaded",
		CVIDs:   []string{},
		Steps:   make([]ats.PipelineStepReport, 0, len(samples)),
	}

	for i, sample := range samples {
		doc := &pipeline.Doc{
			ID:      uuid.NewString(),
			Source:  sourceDemo,
			Consent: true,
		}
		if usePDFs {
			doc.Filename = sample.pdfName
			doc.ContentType = ats.MIMEPDF
			doc.Content = pipeline.BuildPDF(sample.text, pipeline.PDFOptions{Compress: true})
		} else {
			doc.Filename = fmt.Sprintf("demo_cv_%d.pdf", i+1)
			doc.ContentType = ats.MIMEPDF
			doc.RawText = sample.text
		}

		steps, err := pipeline.Run(c.UserContext(), s.deps, s.stages, doc)
		entry := ats.PipelineStepReport{
			CVIndex:  i + 1,
			CVID:     doc.ID,
			Filename: doc.Filename,
			Steps:    steps,
		}
		if err != nil {
			entry.Error = err.Error()
			s.logger.Warn("demo document failed", zap.Int("cv_index", i+1), zap.Error(err))
		} else {
			report.CVIDs = append(report.CVIDs, doc.ID)
		}
		report.Steps = append(report.Steps, entry)
	}

	report.Total = len(report.CVIDs)
	return c.JSON(report)
}

func (s *Server) handleDemoStatus(c *fiber.Ctx) error {
	n := s.store.CountSource(sourceDemo)
	return c.JSON(ats.DemoStatus{DemoCount: n, Total: n})
}

func (s *Server) handleJobOffers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"job_offers": jobOffers})
}
