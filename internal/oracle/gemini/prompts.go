package gemini

import (
	"fmt"
	"strings"

	"github.com/hirepath/hirepath/internal/domain"
	"github.com/hirepath/hirepath/internal/oracle"
)

func parsePrompt(text string) string {
	var b strings.Builder
	b.WriteString("You are an expert resume analyst. Extract structured data from the resume below.\n\n")
	b.WriteString("Resume:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn ONLY a JSON object with this exact shape:\n")
	b.WriteString(`{"name": "", "email": "", "skills": [], "experience_years": 0, "job_titles": [], "education": [], "summary": ""}`)
	b.WriteString("\nDo not include any other text.")
	return b.String()
}

func matchPrompt(profile *domain.CandidateProfile, job *domain.Job) string {
	var b strings.Builder
	b.WriteString("You are an expert recruiter. Score how well this candidate matches the job.\n\n")
	writeJob(&b, job)
	b.WriteString("\nCandidate Profile:\n")
	writeProfile(&b, profile)
	b.WriteString("\nReturn ONLY a JSON object:\n")
	b.WriteString(`{"score": 0.0, "rationale": ""}`)
	b.WriteString("\nThe score must be between 0.0 and 1.0. Do not include any other text.")
	return b.String()
}

func questionPrompt(in oracle.GenerationInput, history []domain.QuestionAnswer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s interviewer conducting an adaptive interview.\n\n", interviewType(in.Type))
	writeJob(&b, in.Job)
	if in.Profile != nil {
		b.WriteString("\nCandidate Profile:\n")
		writeProfile(&b, in.Profile)
	}

	if len(history) == 0 {
		b.WriteString("\nThis is the first question of the interview.\n")
	} else {
		b.WriteString("\nInterview so far:\n")
		writeHistory(&b, history)
	}

	if in.Difficulty != "" {
		fmt.Fprintf(&b, "\nGenerate ONE %s-difficulty question", in.Difficulty)
	} else {
		b.WriteString("\nGenerate ONE question")
	}
	b.WriteString(" that tests skills relevant to the job, does not repeat topics already covered, ")
	b.WriteString("and builds on the candidate's previous answers.\n")
	b.WriteString("Return ONLY the question text, with no numbering, quotes, or commentary.")
	return b.String()
}

func evaluationPrompt(in oracle.EvaluationInput, history []domain.QuestionAnswer) string {
	var b strings.Builder
	b.WriteString("You are an expert interviewer evaluating a candidate's answer.\n\n")
	writeJob(&b, in.Job)

	if len(history) > 0 {
		b.WriteString("\nEarlier answers for context:\n")
		writeHistory(&b, history)
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(in.Question)
	b.WriteString("\nAnswer: ")
	b.WriteString(in.Answer)
	b.WriteString("\n\nReturn ONLY a JSON object:\n")
	b.WriteString(`{"score": 0.0, "explanation": "", "topic": ""}`)
	b.WriteString("\nThe score must be between 0.0 and 1.0; topic is the one-or-two-word subject the question covered. Do not include any other text.")
	return b.String()
}

func writeJob(b *strings.Builder, job *domain.Job) {
	fmt.Fprintf(b, "Job: %s\n", job.Title)
	if len(job.Criteria.Skills) > 0 {
		fmt.Fprintf(b, "Required skills: %s\n", strings.Join(job.Criteria.Skills, ", "))
	}
	if job.Criteria.ExpMax > 0 {
		fmt.Fprintf(b, "Experience: %d-%d years\n", job.Criteria.ExpMin, job.Criteria.ExpMax)
	}
	if desc := strings.TrimSpace(job.Description); desc != "" {
		fmt.Fprintf(b, "Description: %s\n", truncate(desc, 500))
	}
}

func writeProfile(b *strings.Builder, p *domain.CandidateProfile) {
	if len(p.Skills) > 0 {
		fmt.Fprintf(b, "Skills: %s\n", strings.Join(p.Skills, ", "))
	}
	fmt.Fprintf(b, "Experience: %.1f years\n", p.ExperienceYears)
	if len(p.JobTitles) > 0 {
		fmt.Fprintf(b, "Previous roles: %s\n", strings.Join(p.JobTitles, ", "))
	}
	if p.Summary != "" {
		fmt.Fprintf(b, "Summary: %s\n", truncate(p.Summary, 300))
	}
}

func writeHistory(b *strings.Builder, history []domain.QuestionAnswer) {
	for i, qa := range history {
		fmt.Fprintf(b, "Q%d: %s\nA%d: %s (score %.2f)\n", i+1, qa.Question, i+1, qa.Answer, qa.Score)
	}
}

func interviewType(t string) string {
	t = strings.TrimSpace(strings.ToLower(t))
	if t == "" {
		return "technical"
	}
	return t
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
